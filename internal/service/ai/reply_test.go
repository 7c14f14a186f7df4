package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
)

type scriptedResult struct {
	text string
	err  error
}

type fakeGenerator struct {
	mu      sync.Mutex
	script  []scriptedResult
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.script) == 0 {
		return "", errors.New("script exhausted")
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next.text, next.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func newTestService(gen Generator, limiter *Limiter) *Service {
	if limiter == nil {
		limiter = newTestLimiter(100, time.Minute, time.Millisecond, time.Second)
	}
	cfg := config.AIConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond}
	return NewService(gen, limiter, cfg, logger.Nop())
}

func TestGenerateReplyFirstAttempt(t *testing.T) {
	gen := &fakeGenerator{script: []scriptedResult{{text: "  hi there!  "}}}
	svc := newTestService(gen, nil)

	reply := svc.GenerateReply(context.Background(), persona.Girlfriend, persona.Romantic, "hello")

	assert.Equal(t, "hi there!", reply)
	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "AI girlfriend")
	assert.Contains(t, gen.prompts[0], "caring and affectionate")
	assert.Contains(t, gen.prompts[0], `User message: "hello"`)
}

func TestGenerateReplyRetriesTransientFailures(t *testing.T) {
	gen := &fakeGenerator{script: []scriptedResult{
		{err: errors.New("connection reset")},
		{text: "   "},
		{text: "third time lucky"},
	}}
	svc := newTestService(gen, nil)

	reply := svc.GenerateReply(context.Background(), persona.Boyfriend, persona.Funny, "tell me a joke")

	assert.Equal(t, "third time lucky", reply)
	assert.Equal(t, 3, gen.calls())
}

func TestGenerateReplyFallsBackAfterMaxAttempts(t *testing.T) {
	gen := &fakeGenerator{script: []scriptedResult{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{text: "never reached"},
	}}
	svc := newTestService(gen, nil)

	reply := svc.GenerateReply(context.Background(), persona.Boyfriend, persona.Supportive, "hey")

	assert.Equal(t, ReplyFallback, reply)
	assert.Equal(t, 3, gen.calls())
}

func TestGenerateReplyHonoursRetryAfter(t *testing.T) {
	gen := &fakeGenerator{script: []scriptedResult{
		{err: &RateLimitError{RetryAfter: 10 * time.Millisecond, Err: errors.New("429")}},
		{text: "ok"},
	}}
	svc := newTestService(gen, nil)

	start := time.Now()
	reply := svc.GenerateReply(context.Background(), persona.Girlfriend, persona.Funny, "hey")

	assert.Equal(t, "ok", reply)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond, "retry-after is rounded up to whole seconds")
}

func TestGenerateReplyStopsWhenLimiterTimesOut(t *testing.T) {
	limiter := newTestLimiter(1, time.Hour, 2*time.Millisecond, 10*time.Millisecond)
	require.True(t, limiter.Allow())
	gen := &fakeGenerator{script: []scriptedResult{{text: "unused"}}}
	svc := newTestService(gen, limiter)

	reply := svc.GenerateReply(context.Background(), persona.Girlfriend, persona.Romantic, "hi")

	assert.Equal(t, ReplyFallback, reply)
	assert.Zero(t, gen.calls())
}

func TestGenerateReplyWithoutModel(t *testing.T) {
	svc := newTestService(nil, nil)

	reply := svc.GenerateReply(context.Background(), persona.Girlfriend, persona.Romantic, "hi")
	assert.Equal(t, ReplyFallback, reply)
}

func TestRateLimitErrorMatchesSentinel(t *testing.T) {
	err := error(&RateLimitError{Err: errors.New("HTTP 429")})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, strings.Contains(err.Error(), "429"))

	classified := classifyUpstreamError(errors.New("status code: 429, Too Many Requests"))
	assert.ErrorIs(t, classified, ErrRateLimited)

	other := classifyUpstreamError(errors.New("bad gateway"))
	assert.NotErrorIs(t, other, ErrRateLimited)
}

func TestBuildReplyPromptUsesCharacterAndTraits(t *testing.T) {
	prompt := BuildReplyPrompt(persona.Boyfriend, persona.Funny, "what's up")

	assert.Contains(t, prompt, "AI boyfriend")
	assert.Contains(t, prompt, "playful and humorous")
	assert.True(t, strings.HasSuffix(prompt, "Your response:"))
}
