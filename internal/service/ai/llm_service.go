package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

var (
	// ErrRateLimited is reported when the local quota wait times out or the
	// upstream service answers with a rate-limit signal.
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")
	// ErrUnavailable is returned by generators that have no model configured.
	ErrUnavailable = errors.New("text generation unavailable")
)

// Generator is the external text-generation contract: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RateLimitError carries an upstream rate-limit signal and the optional
// Retry-After hint supplied with it.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: %v", ErrRateLimited, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ChainGenerator runs prompts through an eino chain ending in a chat model.
type ChainGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChainGenerator compiles the single-turn prompt chain around chatModel.
func NewChainGenerator(ctx context.Context, chatModel model.ChatModel) (*ChainGenerator, error) {
	if chatModel == nil {
		return nil, ErrUnavailable
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &ChainGenerator{chain: runnable}, nil
}

// Generate sends prompt as one user turn and returns the model's text.
func (g *ChainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := g.chain.Invoke(ctx, map[string]any{"prompt": prompt})
	if err != nil {
		return "", classifyUpstreamError(err)
	}
	if response == nil {
		return "", nil
	}
	return response.Content, nil
}

// classifyUpstreamError maps provider throttling errors onto RateLimitError.
func classifyUpstreamError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "ratelimit") {
		return &RateLimitError{Err: err}
	}
	return fmt.Errorf("failed to run generation chain: %w", err)
}

// UnavailableGenerator is used when no model credentials are configured.
type UnavailableGenerator struct{}

func (UnavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", ErrUnavailable
}
