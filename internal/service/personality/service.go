package personality

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
)

// Limiter gates outbound classification calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Service 使用大模型判断回复应采用的语气，失败时回退到 supportive。
type Service struct {
	generator ai.Generator
	limiter   Limiter
	log       *logger.Logger
}

// NewService creates the classifier on top of a shared generator and limiter.
func NewService(generator ai.Generator, limiter Limiter, log *logger.Logger) *Service {
	if generator == nil {
		generator = ai.UnavailableGenerator{}
	}
	return &Service{
		generator: generator,
		limiter:   limiter,
		log:       log.With("component", "personality"),
	}
}

// Detect 根据用户消息返回语气标签。调用只进行一次，不做重试。
func (s *Service) Detect(ctx context.Context, message string) persona.Personality {
	if err := s.limiter.Wait(ctx); err != nil {
		s.log.Warn("personality detection skipped", "error", err)
		return persona.FallbackPersonality
	}

	raw, err := s.generator.Generate(ctx, buildPrompt(message))
	if err != nil {
		s.log.Warn("personality detection failed, use fallback", "error", err)
		return persona.FallbackPersonality
	}

	label, ok := persona.ParsePersonality(raw)
	if !ok {
		s.log.Warn("unexpected personality detection response", "response", raw)
		return persona.FallbackPersonality
	}

	s.log.Debug("personality detected", "personality", label)
	return label
}

func buildPrompt(message string) string {
	labels := make([]string, 0, 3)
	for _, p := range persona.Personalities() {
		labels = append(labels, string(p))
	}

	return fmt.Sprintf(`Given this message, what personality type would be most appropriate for responding? Choose only one: %s.
Message: %q
Respond with just the word (%s):`,
		strings.Join(labels, ", "),
		message,
		strings.Join(labels, "/"),
	)
}
