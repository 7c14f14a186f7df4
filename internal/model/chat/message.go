package chat

import "time"

// ChatMessage is one turn shown in the chat window. It lives only as long as
// the socket session that produced it.
type ChatMessage struct {
	Content   string    `json:"content"`
	IsAI      bool      `json:"isAi"`
	Timestamp time.Time `json:"timestamp"`
}

// Inbound is the frame a client sends over the real-time channel.
type Inbound struct {
	Content string `json:"content"`
}
