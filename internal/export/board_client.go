package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	// DefaultBaseURL is the board REST API root.
	DefaultBaseURL = "https://api.trello.com/1"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second
)

const maxErrorBody = 200

// StatusError is a non-2xx answer from the board API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if r := []rune(body); len(r) > maxErrorBody {
		body = string(r[:maxErrorBody])
	}
	if body == "" {
		return fmt.Sprintf("board api returned status %d", e.Code)
	}
	return fmt.Sprintf("board api returned status %d: %s", e.Code, body)
}

type Board struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ShortURL string `json:"shortUrl"`
}

type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

type Card struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ShortURL string `json:"shortUrl"`
}

// BoardAPI is the subset of the board service the exporter uses.
type BoardAPI interface {
	GetBoard(ctx context.Context, token, boardID string) (*Board, error)
	GetLists(ctx context.Context, token, boardID string) ([]List, error)
	CreateList(ctx context.Context, token, boardID, name string) (*List, error)
	CreateCard(ctx context.Context, token, listID, name, desc string) (*Card, error)
}

// Client is an HTTP client for the board API authenticated by an app key and
// a per-user token.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetBoard(ctx context.Context, token, boardID string) (*Board, error) {
	var board Board
	params := url.Values{"fields": {"name,url,shortUrl"}}
	if err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID), token, params, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (c *Client) GetLists(ctx context.Context, token, boardID string) ([]List, error) {
	var lists []List
	params := url.Values{"filter": {"open"}}
	if err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID)+"/lists", token, params, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

func (c *Client) CreateList(ctx context.Context, token, boardID, name string) (*List, error) {
	var list List
	params := url.Values{"name": {name}, "idBoard": {boardID}, "pos": {"top"}}
	if err := c.do(ctx, http.MethodPost, "/lists", token, params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) CreateCard(ctx context.Context, token, listID, name, desc string) (*Card, error) {
	var card Card
	params := url.Values{"idList": {listID}, "name": {name}, "desc": {desc}, "pos": {"bottom"}}
	if err := c.do(ctx, http.MethodPost, "/cards", token, params, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.apiKey)
	params.Set("token", token)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Msg("board api request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
