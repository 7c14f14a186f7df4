package ai

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
)

// ReplyFallback is sent when every generation attempt failed.
const ReplyFallback = "I'm having a bit of trouble responding right now. Could you try saying that again?"

var errEmptyReply = errors.New("empty reply from model")

// Service generates companion replies with rate limiting and retries.
type Service struct {
	generator   Generator
	limiter     *Limiter
	log         *logger.Logger
	maxAttempts int
	baseDelay   time.Duration
}

// NewService wires the generator behind the shared limiter.
func NewService(generator Generator, limiter *Limiter, cfg config.AIConfig, log *logger.Logger) *Service {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if generator == nil {
		generator = UnavailableGenerator{}
	}
	return &Service{
		generator:   generator,
		limiter:     limiter,
		log:         log.With("component", "ai"),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Generator exposes the underlying generator so other services share it.
func (s *Service) Generator() Generator {
	return s.generator
}

// Limiter exposes the shared limiter.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// GenerateReply produces the companion's answer to message. It never fails:
// when all attempts are exhausted the generic apology is returned instead.
func (s *Service) GenerateReply(ctx context.Context, character persona.CharacterType, personality persona.Personality, message string) string {
	reply, err := s.generateWithRetry(ctx, BuildReplyPrompt(character, personality, message))
	if err != nil {
		s.log.Warn("reply generation failed, using fallback", "character", character, "personality", personality, "error", err)
		return ReplyFallback
	}

	s.log.Info("generated reply", "character", character, "personality", personality, "length", len(reply))
	return reply
}

func (s *Service) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	operation := func() (string, error) {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}

		text, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return "", backoff.Permanent(err)
			}
			var rateErr *RateLimitError
			if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
				return "", backoff.RetryAfter(int(math.Ceil(rateErr.RetryAfter.Seconds())))
			}
			return "", err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return "", errEmptyReply
		}
		return text, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.maxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("generation attempt failed", "attempt", attempt, "retryIn", next, "error", err)
		}),
	)
}

// newBackOff doubles the delay after every failed attempt without jitter.
func (s *Service) newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     s.baseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         s.baseDelay * 8,
	}
	b.Reset()
	return b
}
