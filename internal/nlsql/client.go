// Package nlsql turns natural-language questions into T-SQL using a
// discovered schema snapshot as grounding, and sanity-checks the result
// against the same snapshot before anything executes it.
package nlsql

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
)

// LLM is the completion surface the generator needs. Tests substitute a fake.
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// AnthropicClient implements LLM against the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *logger.Logger
}

// NewAnthropicClient reads credentials from the environment (ANTHROPIC_API_KEY).
func NewAnthropicClient(model string, maxTokens int64, log *logger.Logger) *AnthropicClient {
	return &AnthropicClient{
		client:    anthropic.NewClient(),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		log:       log,
	}
}

// Complete sends one system+user exchange and returns the first text block.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "anthropic request failed", err)
	}

	c.log.With().
		Str("model", string(c.model)).
		Str("stop_reason", string(msg.StopReason)).
		Int("duration_ms", int(time.Since(start).Milliseconds())).
		Logger().
		Debug("nlsql: completion returned")

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errs.New(errs.ErrKindQueryFailed, "no text content in model response")
}
