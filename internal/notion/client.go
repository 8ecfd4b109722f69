// Package notion implements n2s.Source over the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
	"github.com/caiotarifa/notion2sheets/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	// DefaultMinInterval keeps the client near Notion's average limit of
	// three requests per second.
	DefaultMinInterval = 334 * time.Millisecond
)

// Config holds Client settings. Zero values select the defaults. Limiter may
// be shared with other clients; retries always follow IsRetryable.
type Config struct {
	Token      string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Logger     n2s.Logger
}

// Client is a Notion API client. All requests go through a single limiter,
// so at most one is in flight at a time.
type Client struct {
	token      string
	baseURL    string
	version    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     n2s.Logger
}

var _ n2s.Source = (*Client)(nil)

// NewClient creates a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("notion token is required")
	}

	c := &Client{
		token:      cfg.Token,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    cfg.Version,
		httpClient: cfg.HTTPClient,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.version == "" {
		c.version = DefaultVersion
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(ratelimit.Options{
			MinInterval: DefaultMinInterval,
			MaxRetries:  3,
			RetryBase:   500 * time.Millisecond,
			Retryable:   IsRetryable,
		})
	}
	if c.logger == nil {
		c.logger = n2s.NewNopLogger()
	}
	return c, nil
}

// APIError is an error response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// IsRetryable reports whether err is a rate limit, a server error or a
// transport failure.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// QueryDatabase returns one page of results for req.
func (c *Client) QueryDatabase(ctx context.Context, req n2s.QueryRequest) (*n2s.QueryResult, error) {
	body := queryBody{
		StartCursor: req.StartCursor,
		PageSize:    req.PageSize,
		Filter:      newFilterBody(req.Filter),
	}

	var resp queryResponse
	path := "/databases/" + url.PathEscape(req.DatabaseID) + "/query"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("querying database %s: %w", req.DatabaseID, err)
	}

	result := &n2s.QueryResult{
		Results: make([]*n2s.Page, 0, len(resp.Results)),
		HasMore: resp.HasMore,
	}
	if resp.NextCursor != nil {
		result.NextCursor = *resp.NextCursor
	}
	for _, wp := range resp.Results {
		result.Results = append(result.Results, wp.toPage(c.logger))
	}
	return result, nil
}

// GetPage retrieves a single page.
func (c *Client) GetPage(ctx context.Context, id string) (*n2s.Page, error) {
	var wp wirePage
	if err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(id), nil, &wp); err != nil {
		return nil, fmt.Errorf("retrieving page %s: %w", id, err)
	}
	return wp.toPage(c.logger), nil
}

// GetUser retrieves a workspace user.
func (c *Client) GetUser(ctx context.Context, id string) (n2s.User, error) {
	var wu wireUser
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &wu); err != nil {
		return n2s.User{}, fmt.Errorf("retrieving user %s: %w", id, err)
	}
	return wu.toUser(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	return c.limiter.DoWhen(ctx, IsRetryable, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.version)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.logger.Debug("notion request", "method", method, "path", path)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= 300 {
			apiErr := &APIError{}
			if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(string(data))
			}
			apiErr.Status = resp.StatusCode
			if apiErr.Status == http.StatusTooManyRequests {
				c.logger.Warn("notion rate limited", "path", path)
			}
			return apiErr
		}

		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
}

type queryBody struct {
	StartCursor string      `json:"start_cursor,omitempty"`
	PageSize    int         `json:"page_size,omitempty"`
	Filter      *filterBody `json:"filter,omitempty"`
}

type filterBody struct {
	Timestamp      string              `json:"timestamp"`
	LastEditedTime *timestampCondition `json:"last_edited_time,omitempty"`
	CreatedTime    *timestampCondition `json:"created_time,omitempty"`
}

type timestampCondition struct {
	OnOrAfter string `json:"on_or_after"`
}

func newFilterBody(f *n2s.Filter) *filterBody {
	if f == nil {
		return nil
	}

	cond := &timestampCondition{OnOrAfter: n2s.FormatTimestamp(f.OnOrAfter)}
	body := &filterBody{Timestamp: f.Timestamp}
	switch f.Timestamp {
	case "created_time":
		body.CreatedTime = cond
	default:
		body.Timestamp = "last_edited_time"
		body.LastEditedTime = cond
	}
	return body
}

type queryResponse struct {
	Results    []wirePage `json:"results"`
	NextCursor *string    `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}
