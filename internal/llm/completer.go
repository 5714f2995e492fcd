// Package llm issues single, non-streaming completion requests and classifies
// their failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
)

// Request is the provider-neutral completion request.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer returns the raw completion text for one prompt. Failures are
// *apperr.Error values of kind timeout, transport or api.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var errAPIKeyRequired = errors.New("API key required")

// AnthropicCompleter implements Completer against the Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  anthropic.Model
	logger arbor.ILogger
}

// NewAnthropicCompleter builds a completer. SDK-level retries are disabled so
// one Complete call is exactly one HTTP request; extra options are appended.
func NewAnthropicCompleter(apiKey, model string, logger arbor.ILogger, opts ...option.RequestOption) (*AnthropicCompleter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY", errAPIKeyRequired)
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &AnthropicCompleter{
		client: anthropic.NewClient(all...),
		model:  anthropic.Model(model),
		logger: logger,
	}, nil
}

func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		classified := classify(ctx, err)
		c.logger.Warn().
			Err(err).
			Str("kind", string(apperr.KindOf(classified))).
			Dur("duration", time.Since(start)).
			Msg("completion request failed")
		return "", classified
	}

	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	c.logger.Debug().
		Str("model", string(c.model)).
		Int("response_length", out.Len()).
		Dur("duration", time.Since(start)).
		Msg("completion request finished")
	return out.String(), nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Timeout("completion", err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apperr.API("completion", apiErr.StatusCode, err)
	}
	return apperr.Transport("completion", err)
}
