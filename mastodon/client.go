// ABOUTME: Read-only client for the public Mastodon REST API (tag timelines and single statuses).
// ABOUTME: Wraps net/http with a User-Agent, typed errors, and the retry policy.
package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PageSize is the largest page the tag timeline endpoint returns.
const PageSize = 40

// Client talks to one Mastodon instance.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	retry      RetryPolicy
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// NewClient creates a client for the instance at baseURL.
func NewClient(baseURL, userAgent string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse instance url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("instance url %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(err error, attempt int, delay time.Duration) {
			log.Printf("mastodon: retrying attempt=%d delay=%s err=%v", attempt+1, delay, err)
		}
	}
	return c, nil
}

// TagTimeline returns one page of media statuses tagged with hashtag. When
// minID is set, only statuses newer than minID are returned (oldest page
// first, as the API does for min_id).
func (c *Client) TagTimeline(ctx context.Context, hashtag, minID string) ([]Status, error) {
	q := url.Values{}
	q.Set("only_media", "true")
	q.Set("limit", strconv.Itoa(PageSize))
	if minID != "" {
		q.Set("min_id", minID)
	}
	path := "/api/v1/timelines/tag/" + url.PathEscape(hashtag) + "?" + q.Encode()

	var statuses []Status
	if err := c.get(ctx, path, &statuses); err != nil {
		return nil, fmt.Errorf("tag timeline %s: %w", hashtag, err)
	}
	return statuses, nil
}

// Status fetches a single status by ID.
func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	var status Status
	if err := c.get(ctx, "/api/v1/statuses/"+url.PathEscape(id), &status); err != nil {
		return nil, fmt.Errorf("status %s: %w", id, err)
	}
	return &status, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return Retry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &NetworkError{Cause: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errorFromStatus(resp.StatusCode, readErrorMessage(resp.Body), resp.Header.Get("Retry-After"))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &DecodeError{Cause: err}
		}
		return nil
	})
}

// readErrorMessage extracts the "error" field of a Mastodon error body.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
