package practicum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the production homework status endpoint.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// maxBodyBytes caps how much of a reply is read.
const maxBodyBytes = 4 << 20

type Config struct {
	Endpoint string
	Token    string
	// Timeout bounds one request. 0 leaves the http.Client default (none).
	Timeout time.Duration
}

// Client fetches homework statuses. It is safe for concurrent use.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
	now      func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClock overrides the clock used when Fetch is called with a zero cursor.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.Endpoint)
	if raw == "" {
		raw = DefaultEndpoint
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("practicum: endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("practicum: endpoint must be http(s), got %q", raw)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum: token is empty")
	}
	c := &Client{
		endpoint: u,
		token:    strings.TrimSpace(cfg.Token),
		http:     &http.Client{Timeout: cfg.Timeout},
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Fetch requests statuses changed since from (unix seconds). A zero from
// means "now". The returned bytes are guaranteed to be valid JSON.
func (c *Client) Fetch(ctx context.Context, from int64) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if from <= 0 {
		from = c.now().Unix()
	}

	u := *c.endpoint
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(from, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("practicum: build request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("practicum: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("practicum: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode, body)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, truncate(strings.TrimSpace(string(body)), 120))
	}
	return body, nil
}

func newStatusError(code int, body []byte) *StatusError {
	se := &StatusError{StatusCode: code}
	var out struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return se
	}
	se.Code = out.Code
	se.Message = out.Message
	se.APIError = describeAPIError(out.Error)
	return se
}

// describeAPIError flattens the "error" field, which is either a string or
// an object like {"error": "Wrong from_date format"}.
func describeAPIError(raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Error != "" {
		return obj.Error
	}
	return truncate(string(raw), 120)
}
