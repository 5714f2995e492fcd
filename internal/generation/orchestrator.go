// Package generation produces ScreenSets from a product brief, either through
// the completion service or, on classified failures, deterministically.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
	"github.com/zaqqye/uiflow_backend/internal/llm"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

const DefaultTimeout = 120 * time.Second

// Result is a generated ScreenSet plus the notice shown when it is not the
// AI-generated one.
type Result struct {
	Set    models.ScreenSet
	Source models.Source
	Notice string
}

type Options struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	Fallback    FallbackFunc
}

// Generator issues one bounded completion per call and downgrades transport,
// api and parse failures to the fallback. Timeouts are returned as-is.
type Generator struct {
	completer   llm.Completer
	fallback    FallbackFunc
	timeout     time.Duration
	maxTokens   int
	temperature float64
	logger      arbor.ILogger
}

func NewGenerator(completer llm.Completer, logger arbor.ILogger, opts Options) *Generator {
	g := &Generator{
		completer:   completer,
		fallback:    opts.Fallback,
		timeout:     opts.Timeout,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		logger:      logger,
	}
	if g.fallback == nil {
		g.fallback = Fallback
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	return g
}

func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	if in.DocumentID == "" {
		return nil, apperr.Invalid("generate screens", models.ErrEmptyParentID)
	}
	prompt, err := renderPrompt(in)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	start := time.Now()
	set, genErr := g.complete(ctx, prompt, in.DocumentID)
	if genErr == nil {
		g.logger.Info().
			Str("document_id", in.DocumentID).
			Int("screens", len(set.Screens)).
			Int("steps", len(set.AppFlow.Steps)).
			Dur("duration", time.Since(start)).
			Msg("screens generated")
		set.Source = models.SourceAI
		return &Result{Set: set, Source: models.SourceAI}, nil
	}

	kind := apperr.KindOf(genErr)
	switch kind {
	case apperr.KindTransport, apperr.KindAPI, apperr.KindParse:
	default:
		g.logger.Warn().
			Err(genErr).
			Str("document_id", in.DocumentID).
			Str("kind", string(kind)).
			Dur("duration", time.Since(start)).
			Msg("screen generation failed")
		return nil, genErr
	}

	g.logger.Warn().
		Err(genErr).
		Str("document_id", in.DocumentID).
		Str("kind", string(kind)).
		Msg("screen generation failed, using basic screens")
	fb, fbErr := g.fallback(in.Brief, Document{ID: in.DocumentID, Title: in.Title})
	if fbErr != nil {
		g.logger.Error().Err(fbErr).Str("document_id", in.DocumentID).Msg("fallback generation failed")
		return nil, genErr
	}
	fb = fb.WithParent(in.DocumentID)
	fb.Source = models.SourceFallback
	return &Result{Set: fb, Source: models.SourceFallback, Notice: fallbackNotice(genErr)}, nil
}

func (g *Generator) complete(ctx context.Context, prompt, documentID string) (models.ScreenSet, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.completer.Complete(callCtx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return models.ScreenSet{}, apperr.Timeout("generate screens", fmt.Errorf("no response within %s", g.timeout))
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return models.ScreenSet{}, ctx.Err()
		}
		if apperr.KindOf(err) == "" {
			err = apperr.Transport("generate screens", err)
		}
		return models.ScreenSet{}, err
	}
	return Parse(raw, documentID)
}

func fallbackNotice(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindAPI:
		return fmt.Sprintf("The AI service returned an error (status %d), so basic screens were created instead. You can edit them or try generating again.", apperr.StatusOf(err))
	case apperr.KindTransport:
		return "The AI service could not be reached, so basic screens were created instead. You can edit them or try generating again."
	default:
		return "The AI response could not be read, so basic screens were created instead. You can edit them or try generating again."
	}
}
