package chat

import "time"

// EventType 区分服务端推送给客户端的三类消息。
type EventType string

const (
	EventTyping  EventType = "typing"
	EventMessage EventType = "message"
	EventError   EventType = "error"
)

// Event is the envelope written to the client for every server push.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// TypingStatus is the payload of a typing event.
type TypingStatus struct {
	IsTyping bool `json:"isTyping"`
}

// Terminal reports whether the event ends the processing of one client frame.
func (e Event) Terminal() bool {
	return e.Type == EventMessage || e.Type == EventError
}

func TypingEvent() Event {
	return Event{Type: EventTyping, Data: TypingStatus{IsTyping: true}}
}

func MessageEvent(content string, ts time.Time) Event {
	return Event{Type: EventMessage, Data: ChatMessage{Content: content, IsAI: true, Timestamp: ts}}
}

func ErrorEvent(content string, ts time.Time) Event {
	return Event{Type: EventError, Data: ChatMessage{Content: content, IsAI: true, Timestamp: ts}}
}
