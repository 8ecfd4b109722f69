// Package sheets implements n2s.Destination over the Google Sheets v4 API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
	"github.com/caiotarifa/notion2sheets/internal/ratelimit"
)

// DefaultMinInterval matches the Sheets per-user write quota.
const DefaultMinInterval = 334 * time.Millisecond

// Config holds Client settings.
type Config struct {
	// CredentialsJSON is a service account key file.
	CredentialsJSON []byte

	// Endpoint overrides the API base URL and disables authentication.
	// Only used by tests.
	Endpoint string

	HTTPClient *http.Client
	// Limiter may be shared with other clients. Reads retry on IsRetryable
	// and batch updates only on IsRateLimited.
	Limiter *ratelimit.Limiter
	Logger     n2s.Logger
}

// Client is a Google Sheets client authenticated as a service account.
type Client struct {
	svc     *sheetsapi.Service
	limiter *ratelimit.Limiter
	logger  n2s.Logger
}

var _ n2s.Destination = (*Client)(nil)

// NewClient creates a Client from cfg.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case len(cfg.CredentialsJSON) > 0:
		opts = append(opts,
			option.WithCredentialsJSON(cfg.CredentialsJSON),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		)
	default:
		return nil, errors.New("google service account credentials are required")
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	c := &Client{svc: svc, limiter: cfg.Limiter, logger: cfg.Logger}
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

// IsRetryable reports whether err is a quota error, a server error or a
// transport failure.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsRateLimited reports whether err is a quota rejection. The request was
// refused before any change was applied, so it is safe to resend.
func IsRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// ListTabs returns the spreadsheet's tabs in display order.
func (c *Client) ListTabs(ctx context.Context, spreadsheetID string) ([]n2s.Tab, error) {
	var resp *sheetsapi.Spreadsheet
	err := c.limiter.DoWhen(ctx, IsRetryable, func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Spreadsheets.Get(spreadsheetID).
			Fields("sheets.properties(sheetId,title)").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet %s: %w", spreadsheetID, err)
	}

	tabs := make([]n2s.Tab, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		tabs = append(tabs, n2s.Tab{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return tabs, nil
}

// GetValues returns the formatted values of the whole tab. Rows are ragged:
// the API omits trailing empty cells.
func (c *Client) GetValues(ctx context.Context, spreadsheetID, tabName string) ([][]string, error) {
	var resp *sheetsapi.ValueRange
	err := c.limiter.DoWhen(ctx, IsRetryable, func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(spreadsheetID, QuoteTabName(tabName)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading values of %q: %w", tabName, err)
	}

	values := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		values[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				values[i][j] = fmt.Sprint(v)
			}
		}
	}
	return values, nil
}

// BatchUpdate sends edits as one batchUpdate call, so the spreadsheet
// applies them atomically and in order.
//
// Row deletions are positional, so a batch the server may already have
// applied is never resent. Only quota rejections are retried.
func (c *Client) BatchUpdate(ctx context.Context, spreadsheetID string, edits []n2s.Edit) error {
	if len(edits) == 0 {
		return nil
	}

	requests, err := Requests(edits)
	if err != nil {
		return err
	}

	c.logger.Debug("sheets batch update", "spreadsheet_id", spreadsheetID, "requests", len(requests))

	err = c.limiter.DoWhen(ctx, IsRateLimited, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: requests,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("updating spreadsheet %s: %w", spreadsheetID, err)
	}
	return nil
}

// QuoteTabName returns tabName as an A1 range covering the whole tab.
func QuoteTabName(tabName string) string {
	return "'" + strings.ReplaceAll(tabName, "'", "''") + "'"
}
