// Package export pushes prioritized features to a board API as cards.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

const (
	DefaultCardDelay   = 300 * time.Millisecond
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
	DefaultBoardWebURL = "https://trello.com"

	// DefaultListName is used when the board has no list matching listVocabulary.
	DefaultListName = "To Do"
)

var listVocabulary = map[string]bool{
	"to do":   true,
	"todo":    true,
	"to-do":   true,
	"backlog": true,
}

type Request struct {
	BoardID  string
	Features []models.Feature
	Token    string
	ListID   string
}

type Result struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	CardsCreated int      `json:"cardsCreated"`
	BoardURL     string   `json:"boardUrl"`
	Attempted    int      `json:"attempted"`
	Skipped      int      `json:"skipped"`
	Errors       []string `json:"errors,omitempty"`
}

type Options struct {
	// CardDelay is the minimum spacing between card creations. Zero disables it.
	CardDelay   time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BoardWebURL string
	// NewTimer supplies the timer used between retries; nil uses wall time.
	NewTimer func() backoff.Timer
}

func DefaultOptions() Options {
	return Options{
		CardDelay:   DefaultCardDelay,
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		BoardWebURL: DefaultBoardWebURL,
	}
}

type Exporter struct {
	api    BoardAPI
	opts   Options
	logger arbor.ILogger
}

func NewExporter(api BoardAPI, opts Options, logger arbor.ILogger) *Exporter {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BoardWebURL == "" {
		opts.BoardWebURL = DefaultBoardWebURL
	}
	return &Exporter{api: api, opts: opts, logger: logger}
}

// Export creates one card per MUST or SHOULD feature, one at a time.
// External failures are reported in the Result; the error return is only
// for requests that cannot be attempted at all.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.BoardID) == "" {
		return Result{}, apperr.Invalid("export features", errors.New("board id is required"))
	}
	if strings.TrimSpace(req.Token) == "" {
		return Result{}, apperr.Invalid("export features", errors.New("board token is required"))
	}

	eligible := make([]models.Feature, 0, len(req.Features))
	for _, f := range req.Features {
		if f.Priority.Exportable() {
			eligible = append(eligible, f)
		}
	}
	res := Result{
		BoardURL: e.boardURL(ctx, req),
		Skipped:  len(req.Features) - len(eligible),
	}
	if len(eligible) == 0 {
		res.Message = "No MUST or SHOULD features to export"
		return res, nil
	}

	listID, err := e.resolveList(ctx, req)
	if err != nil {
		e.logger.Warn().Err(err).Str("board_id", req.BoardID).Msg("failed to resolve board list")
		res.Message = "Failed to export features: " + err.Error()
		res.Errors = []string{err.Error()}
		return res, nil
	}

	gap := rate.NewLimiter(rate.Inf, 1)
	start := time.Now()
	for _, f := range eligible {
		if err := gap.Wait(ctx); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			break
		}
		res.Attempted++
		err := e.createCard(ctx, req.Token, listID, f)
		gap = e.cardGap()
		if err != nil {
			e.logger.Warn().Err(err).Str("feature", f.Name).Msg("card creation failed")
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		res.CardsCreated++
	}

	failed := len(eligible) - res.CardsCreated
	switch {
	case res.CardsCreated == 0:
		res.Message = "Failed to export features: " + res.Errors[0]
	case failed > 0:
		res.Success = true
		res.Message = fmt.Sprintf("Exported %d of %d features; %d failed", res.CardsCreated, len(eligible), failed)
	default:
		res.Success = true
		res.Message = fmt.Sprintf("Exported %d features", res.CardsCreated)
	}

	e.logger.Info().
		Str("board_id", req.BoardID).
		Int("created", res.CardsCreated).
		Int("failed", failed).
		Int("skipped", res.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("feature export finished")
	return res, nil
}

// cardGap returns a limiter whose next token is CardDelay from now, so the
// delay is measured from the end of the previous card call.
func (e *Exporter) cardGap() *rate.Limiter {
	if e.opts.CardDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(e.opts.CardDelay), 1)
	l.Allow()
	return l
}

func (e *Exporter) boardURL(ctx context.Context, req Request) string {
	board, err := e.api.GetBoard(ctx, req.Token, req.BoardID)
	if err == nil {
		if board.ShortURL != "" {
			return board.ShortURL
		}
		if board.URL != "" {
			return board.URL
		}
	} else {
		e.logger.Debug().Err(err).Str("board_id", req.BoardID).Msg("board lookup failed")
	}
	return strings.TrimRight(e.opts.BoardWebURL, "/") + "/b/" + req.BoardID
}

func (e *Exporter) resolveList(ctx context.Context, req Request) (string, error) {
	if req.ListID != "" {
		return req.ListID, nil
	}
	lists, err := e.api.GetLists(ctx, req.Token, req.BoardID)
	if err != nil {
		return "", fmt.Errorf("fetch lists: %w", err)
	}
	for _, l := range lists {
		if !l.Closed && listVocabulary[strings.ToLower(strings.TrimSpace(l.Name))] {
			return l.ID, nil
		}
	}
	created, err := e.api.CreateList(ctx, req.Token, req.BoardID, DefaultListName)
	if err != nil {
		return "", fmt.Errorf("create list: %w", err)
	}
	return created.ID, nil
}

// createCard retries rate-limit and conflict answers with exponential
// backoff. Any other failure is final for this card.
func (e *Exporter) createCard(ctx context.Context, token, listID string, f models.Feature) error {
	attempt := 0
	op := func() error {
		attempt++
		_, err := e.api.CreateCard(ctx, token, listID, f.Name, cardDescription(f))
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		e.logger.Info().
			Str("feature", f.Name).
			Int("attempt", attempt).
			Dur("delay", next).
			Int("status", statusCode(err)).
			Msg("retrying card creation")
	}

	var timer backoff.Timer
	if e.opts.NewTimer != nil {
		timer = e.opts.NewTimer()
	}
	err := backoff.RetryNotifyWithTimer(op, e.backOff(ctx), notify, timer)
	if err != nil && statusCode(err) == 429 {
		return apperr.New(apperr.KindRateLimit, "create card", err)
	}
	return err
}

func (e *Exporter) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = e.opts.BackoffBase << 6
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.opts.MaxRetries)), ctx)
}

func retryable(err error) bool {
	switch statusCode(err) {
	case 429, 409:
		return true
	}
	return false
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func cardDescription(f models.Feature) string {
	desc := "Priority: " + string(models.ParsePriority(string(f.Priority)))
	if d := strings.TrimSpace(f.Description); d != "" {
		desc += "\n\n" + d
	}
	return desc
}
