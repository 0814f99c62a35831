package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// StatusError is returned when the remote source answers with a non-2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether repeating the request may succeed
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// RetryConfig controls how a single page request is repeated on temporary failures.
// A retry repeats the same Query, it never advances the page.
type RetryConfig struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns conservative retry settings
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

type pageResponse struct {
	Count    int       `json:"count"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Articles []Article `json:"articles"`
}

// HTTP fetches pages from a remote feed endpoint:
// GET {base}/feed?bias_filter=<f>&page=<n>&limit=<size>
type HTTP struct {
	endpoint *url.URL
	client   *http.Client
	retry    RetryConfig
	logger   *slog.Logger
}

// NewHTTP creates an HTTP source rooted at baseURL
func NewHTTP(baseURL string, client *http.Client, retry RetryConfig, logger *slog.Logger) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url '%s' with %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url '%s' must be absolute", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		endpoint: base.JoinPath("feed"),
		client:   client,
		retry:    retry,
		logger:   logger,
	}, nil
}

// Page requests one page of articles
func (s *HTTP) Page(ctx context.Context, q Query) ([]Article, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var articles []Article
	op := func() error {
		res, err := s.do(ctx, q)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		articles = res
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retry.InitialBackoff
	eb.MaxInterval = s.retry.MaxBackoff
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.retry.MaxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("feed request failed, retrying", "page", q.Page, "filter", q.Filter, "retry_in", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}

	if len(articles) > q.PageSize {
		s.logger.Warn("source returned more items than requested", "got", len(articles), "limit", q.PageSize)
		articles = articles[:q.PageSize]
	}
	return articles, nil
}

func (s *HTTP) do(ctx context.Context, q Query) ([]Article, error) {
	u := *s.endpoint
	params := url.Values{}
	params.Set("bias_filter", strconv.FormatFloat(q.Filter, 'f', -1, 64))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.PageSize))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request with %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	s.logger.Debug("requesting feed page", "url", u.String(), "request_id", requestID)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed with %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode feed page with %w", err)
	}
	return page.Articles, nil
}
