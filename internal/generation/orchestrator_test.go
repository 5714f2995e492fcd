package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
	"github.com/zaqqye/uiflow_backend/internal/llm"
	"github.com/zaqqye/uiflow_backend/internal/logging"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

type fallbackSpy struct {
	calls int
	err   error
}

func (f *fallbackSpy) fn(brief string, doc Document) (models.ScreenSet, error) {
	f.calls++
	if f.err != nil {
		return models.ScreenSet{}, f.err
	}
	return Fallback(brief, doc)
}

func newTestGenerator(c llm.Completer, spy *fallbackSpy, timeout time.Duration) *Generator {
	return NewGenerator(c, logging.Discard(), Options{Timeout: timeout, MaxTokens: 512, Temperature: 0.2, Fallback: spy.fn})
}

var testInput = Input{DocumentID: "doc-1", Title: "Recipe Box", Brief: "Save and share recipes."}

func TestGenerateAIPath(t *testing.T) {
	var got llm.Request
	c := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return `{"appFlow":{"steps":[{"description":"open","screenReference":"Home"}]},"screens":[{"name":"Home"}]}`, nil
	})
	spy := &fallbackSpy{}
	res, err := newTestGenerator(c, spy, time.Second).Generate(context.Background(), testInput)
	require.NoError(t, err)
	assert.Equal(t, models.SourceAI, res.Source)
	assert.Empty(t, res.Notice)
	assert.Len(t, res.Set.Screens, 1)
	assert.Equal(t, 0, spy.calls)
	assert.Equal(t, 512, got.MaxTokens)
	assert.Contains(t, got.Prompt, "Recipe Box")
	assert.Contains(t, got.Prompt, "Save and share recipes.")
}

func TestGenerateTimeoutNeverFallsBack(t *testing.T) {
	c := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		<-ctx.Done()
		return "", apperr.Transport("completion", ctx.Err())
	})
	spy := &fallbackSpy{}
	res, err := newTestGenerator(c, spy, 20*time.Millisecond).Generate(context.Background(), testInput)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 0, spy.calls)
}

func TestGenerateGatewayErrorFallsBackOnce(t *testing.T) {
	c := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", apperr.API("completion", 502, errors.New("bad gateway"))
	})
	spy := &fallbackSpy{}
	res, err := newTestGenerator(c, spy, time.Second).Generate(context.Background(), testInput)
	require.NoError(t, err)
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, models.SourceFallback, res.Source)
	assert.GreaterOrEqual(t, len(res.Set.Screens), 1)
	assert.NotEmpty(t, res.Set.AppFlow.Steps)
	assert.Contains(t, res.Notice, "basic screens")
	assert.Contains(t, res.Notice, "502")
	assert.NoError(t, res.Set.Validate())
}

func TestGenerateFallsBackOnTransportAndParse(t *testing.T) {
	cases := map[string]llm.CompleterFunc{
		"transport": func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("connection reset by peer")
		},
		"parse": func(ctx context.Context, req llm.Request) (string, error) {
			return "Sure! Here are your screens:", nil
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			spy := &fallbackSpy{}
			res, err := newTestGenerator(c, spy, time.Second).Generate(context.Background(), testInput)
			require.NoError(t, err)
			assert.Equal(t, 1, spy.calls)
			assert.True(t, strings.Contains(res.Notice, "basic screens"))
		})
	}
}

func TestGenerateSurfacesOriginalErrorWhenFallbackFails(t *testing.T) {
	c := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", apperr.API("completion", 500, nil)
	})
	spy := &fallbackSpy{err: errors.New("fallback broke")}
	_, err := newTestGenerator(c, spy, time.Second).Generate(context.Background(), testInput)
	require.Error(t, err)
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, apperr.KindAPI, apperr.KindOf(err))
	assert.Equal(t, 500, apperr.StatusOf(err))
}

func TestGenerateRequiresDocument(t *testing.T) {
	spy := &fallbackSpy{}
	_, err := newTestGenerator(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		t.Fatal("completion must not be called")
		return "", nil
	}), spy, time.Second).Generate(context.Background(), Input{})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestGenerateCallerCancellationIsNotFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	spy := &fallbackSpy{}
	_, err := newTestGenerator(c, spy, time.Second).Generate(ctx, testInput)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, spy.calls)
}
