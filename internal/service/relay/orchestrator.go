package relay

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/model/user"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
)

const (
	busyMessage    = "I'm getting a lot of messages right now. Can you give me a moment to catch up?"
	troubleMessage = "I'm having trouble responding right now. Could you try again in a moment?"
)

// UserFinder resolves the user bound to a connection.
type UserFinder interface {
	Get(ctx context.Context, id string) (user.User, error)
}

// PersonalityDetector picks the reply tone for a message.
type PersonalityDetector interface {
	Detect(ctx context.Context, message string) persona.Personality
}

// ReplyGenerator produces the companion's reply text.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, character persona.CharacterType, personality persona.Personality, message string) string
}

// EmitFunc delivers one event to the client.
type EmitFunc func(chat.Event) error

// Orchestrator runs the typing → classify → generate → emit sequence.
type Orchestrator struct {
	users       UserFinder
	personality PersonalityDetector
	replies     ReplyGenerator
	log         *logger.Logger
	now         func() time.Time
}

// NewOrchestrator wires the three collaborators of the reply sequence.
func NewOrchestrator(users UserFinder, personality PersonalityDetector, replies ReplyGenerator, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		users:       users,
		personality: personality,
		replies:     replies,
		log:         log.With("component", "relay"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Process handles one user message. It emits exactly one typing event
// followed by exactly one terminal event (message or error). Emit failures
// are returned; processing failures are reported to the client instead.
func (o *Orchestrator) Process(ctx context.Context, userID, content string, emit EmitFunc) error {
	if err := emit(chat.TypingEvent()); err != nil {
		return err
	}

	u, err := o.users.Get(ctx, userID)
	if err != nil {
		o.log.Warn("message processing failed", "user", userID, "error", err)
		return emit(chat.ErrorEvent(UserFacingError(err), o.now()))
	}

	personality := o.personality.Detect(ctx, content)
	o.log.Debug("detected personality", "user", u.ID, "personality", personality)

	reply := o.replies.GenerateReply(ctx, u.CharacterType, personality, content)
	return emit(chat.MessageEvent(reply, o.now()))
}

// UserFacingError converts an internal error into the text shown in the chat.
func UserFacingError(err error) string {
	if errors.Is(err, ai.ErrRateLimited) {
		return busyMessage
	}
	return troubleMessage
}
