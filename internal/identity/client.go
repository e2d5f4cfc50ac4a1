package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers (service auth tokens).
type HeaderProvider func() map[string]string

// Client talks to the main PairPlay API, which owns user records, pairing,
// couple counters, and the activity feed. The sync layer only reads profiles
// and writes presence/counter/activity side effects through it.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProfile resolves a user to partner id, couple id, and display name.
// A missing user yields (nil, nil).
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("userID is required")
	}
	var p Profile
	err := c.doJSON(ctx, fasthttp.MethodGet, "/internal/users/"+url.PathEscape(userID)+"/profile", nil, &p, true)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// SetOnline durably flips the user's online flag.
func (c *Client) SetOnline(ctx context.Context, userID string, online bool) error {
	req := presenceUpdate{Online: &online}
	return c.doJSON(ctx, fasthttp.MethodPost, "/internal/users/"+url.PathEscape(userID)+"/presence", req, nil, false)
}

// SetLastSeen records the user's last-seen timestamp.
func (c *Client) SetLastSeen(ctx context.Context, userID string, t time.Time) error {
	req := presenceUpdate{LastSeenAt: &t}
	return c.doJSON(ctx, fasthttp.MethodPost, "/internal/users/"+url.PathEscape(userID)+"/presence", req, nil, false)
}

// IncrementGamesPlayed bumps the couple's games-played counter.
func (c *Client) IncrementGamesPlayed(ctx context.Context, coupleID string) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/internal/couples/"+url.PathEscape(coupleID)+"/games-played", nil, nil, true)
}

// AppendActivity appends one record to the couple's recent-activity feed.
func (c *Client) AppendActivity(ctx context.Context, coupleID string, act Activity) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/internal/couples/"+url.PathEscape(coupleID)+"/activities", act, nil, false)
}

// GetHealth probes the API health endpoint.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/health", nil, &h, false); err != nil {
		return nil, err
	}
	return &h, nil
}

var errNotFound = errors.New("not found")

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusNotFound {
			return errNotFound
		}
		if status < 200 || status >= 300 {
			body := string(resp.Body())
			err := fmt.Errorf("pairplay api error: status=%d body=%s", status, truncate(body, 512))
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
