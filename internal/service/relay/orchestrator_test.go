package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/model/user"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
	"github.com/zhouzirui/z-companion/backend/internal/service/personality"
	usersvc "github.com/zhouzirui/z-companion/backend/internal/service/user"
)

type stubDetector struct{ label persona.Personality }

func (s stubDetector) Detect(context.Context, string) persona.Personality { return s.label }

type recordingReplier struct {
	character   persona.CharacterType
	personality persona.Personality
	message     string
}

func (r *recordingReplier) GenerateReply(_ context.Context, character persona.CharacterType, p persona.Personality, message string) string {
	r.character, r.personality, r.message = character, p, message
	return "aww, tell me more"
}

func collect(events *[]chat.Event) EmitFunc {
	return func(evt chat.Event) error {
		*events = append(*events, evt)
		return nil
	}
}

func TestProcessEmitsTypingThenMessage(t *testing.T) {
	users := usersvc.NewService()
	u, err := users.Create(context.Background(), user.User{CharacterType: persona.Girlfriend, Theme: user.ThemeDark})
	require.NoError(t, err)

	replier := &recordingReplier{}
	orch := NewOrchestrator(users, stubDetector{label: persona.Romantic}, replier, logger.Nop())

	var events []chat.Event
	require.NoError(t, orch.Process(context.Background(), u.ID, "I missed you", collect(&events)))

	require.Len(t, events, 2)
	assert.Equal(t, chat.EventTyping, events[0].Type)
	assert.Equal(t, chat.TypingStatus{IsTyping: true}, events[0].Data)
	assert.Equal(t, chat.EventMessage, events[1].Type)

	msg, ok := events[1].Data.(chat.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "aww, tell me more", msg.Content)
	assert.True(t, msg.IsAI)
	assert.False(t, msg.Timestamp.IsZero())

	assert.Equal(t, persona.Girlfriend, replier.character)
	assert.Equal(t, persona.Romantic, replier.personality)
	assert.Equal(t, "I missed you", replier.message)
}

func TestProcessUnknownUserEmitsTypingThenError(t *testing.T) {
	replier := &recordingReplier{}
	orch := NewOrchestrator(usersvc.NewService(), stubDetector{label: persona.Funny}, replier, logger.Nop())

	var events []chat.Event
	require.NoError(t, orch.Process(context.Background(), "ghost", "hello?", collect(&events)))

	require.Len(t, events, 2)
	assert.Equal(t, chat.EventTyping, events[0].Type)
	assert.Equal(t, chat.EventError, events[1].Type)
	assert.True(t, events[1].Terminal())

	msg := events[1].Data.(chat.ChatMessage)
	assert.Equal(t, troubleMessage, msg.Content)
	assert.Empty(t, replier.message, "no reply is generated without a user")
}

func TestProcessStopsWhenEmitFails(t *testing.T) {
	orch := NewOrchestrator(usersvc.NewService(), stubDetector{}, &recordingReplier{}, logger.Nop())
	errClosed := errors.New("socket closed")

	err := orch.Process(context.Background(), "x", "hi", func(chat.Event) error { return errClosed })
	assert.ErrorIs(t, err, errClosed)
}

func TestUserFacingError(t *testing.T) {
	assert.Equal(t, busyMessage, UserFacingError(ai.ErrRateLimited))
	assert.Equal(t, busyMessage, UserFacingError(&ai.RateLimitError{Err: errors.New("429")}))
	assert.Equal(t, troubleMessage, UserFacingError(usersvc.ErrUserNotFound))
}

type countingGenerator struct{ calls atomic.Int32 }

func (g *countingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	return "supportive", nil
}

// With a quota of two calls per window, a second message has to wait for
// the window to reset instead of failing.
func TestProcessWaitsForQuotaInsteadOfFailing(t *testing.T) {
	users := usersvc.NewService()
	u, err := users.Create(context.Background(), user.User{CharacterType: persona.Boyfriend, Theme: user.ThemeLight})
	require.NoError(t, err)

	limiter := ai.NewLimiter(config.RateLimitConfig{
		Requests:     2,
		Window:       80 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		WaitTimeout:  time.Second,
	})
	gen := &countingGenerator{}
	replies := ai.NewService(gen, limiter, config.AIConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond}, logger.Nop())
	detector := personality.NewService(gen, limiter, logger.Nop())
	orch := NewOrchestrator(users, detector, replies, logger.Nop())

	var first, second []chat.Event
	require.NoError(t, orch.Process(context.Background(), u.ID, "one", collect(&first)))

	start := time.Now()
	require.NoError(t, orch.Process(context.Background(), u.ID, "two", collect(&second)))

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.Len(t, second, 2)
	assert.Equal(t, chat.EventMessage, second[1].Type)
	assert.Equal(t, "supportive", second[1].Data.(chat.ChatMessage).Content)
	assert.EqualValues(t, 4, gen.calls.Load())
}
