package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/lotwatch/internal/syncstore"
)

// ErrMalformedResponse is returned when the indexer answers with a body that
// cannot be decoded.
var ErrMalformedResponse = errors.New("malformed indexer response")

// StatusError reports a non-2xx answer from the indexer.
type StatusError struct {
	Path  string
	Code  int
	Retry time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("indexer %s returned status %d", e.Path, e.Code)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int { return e.Code }

// RetryAfter returns the server's Retry-After hint, or zero.
func (e *StatusError) RetryAfter() time.Duration { return e.Retry }

// Ensure Client implements syncstore.Fetcher at compile time.
var _ syncstore.Fetcher[Lottery] = (*Client)(nil)

// Client talks to the indexer's HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	now       func() time.Time
}

const (
	defaultIndexerURL = "127.0.0.1:4350"
	defaultUserAgent  = "lotwatch/0.1"
	requestTimeout    = 10 * time.Second
	listPath          = "/v1/lotteries"
	maxRetryAfter     = 24 * time.Hour
)

// NewClient builds a Client for the indexer at indexerURL (host:port or full URL).
func NewClient(indexerURL string) (*Client, error) {
	base, err := parseBaseURL(indexerURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
		now:       time.Now,
	}, nil
}

// Fetch returns one page of lotteries. Entries without a valid contract id
// are dropped; ids are lowercased.
func (c *Client) Fetch(ctx context.Context, q syncstore.Query) ([]Lottery, error) {
	page, err := c.FetchPage(ctx, q)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// FetchPage retrieves GET /v1/lotteries, including the next-page cursor.
func (c *Client) FetchPage(ctx context.Context, q syncstore.Query) (ListResponse, error) {
	if c == nil {
		return ListResponse{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if cursor := strings.TrimSpace(q.Cursor); cursor != "" {
		values.Set("cursor", cursor)
	}
	rel := &url.URL{Path: listPath, RawQuery: values.Encode()}

	var payload ListResponse
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return ListResponse{}, err
	}
	if payload.Items == nil {
		payload.Items = []Lottery{}
	}
	kept := payload.Items[:0]
	for _, l := range payload.Items {
		id := NormalizeID(l.ID)
		if id == "" {
			continue
		}
		l.ID = id
		if l.Status == "" {
			l.Status = StatusUnknown
		}
		kept = append(kept, l)
	}
	payload.Items = kept
	return payload, nil
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &StatusError{
			Path:  rel.Path,
			Code:  resp.StatusCode,
			Retry: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		if secs > int(maxRetryAfter/time.Second) {
			return maxRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return min(at.Sub(now), maxRetryAfter)
	}
	return 0
}

func parseBaseURL(indexerURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(indexerURL)
	if trimmed == "" {
		trimmed = defaultIndexerURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse indexer_url %q: %w", indexerURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
