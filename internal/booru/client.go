package booru

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
	"strings"
	"time"

	"derpisync/internal/logging"
)

const (
	defaultRetryDelay          = 1 * time.Second
	defaultNotImplementedDelay = 6 * time.Second
	maxErrorBodyBytes          = 512
)

// ErrMalformedResponse marks a 2xx response whose body is not an image envelope.
var ErrMalformedResponse = errors.New("malformed image response")

// Image is the subset of an image record the sync engine needs.
type Image struct {
	ID uint64 `json:"id"`
	// DuplicateOf is the image this one was merged into, if any.
	DuplicateOf *uint64 `json:"duplicate_of"`
	// Tags is nil when the record carries no tag list.
	Tags []string `json:"tags"`
}

// HasTags reports whether the record carries a tag list (possibly empty).
func (i *Image) HasTags() bool {
	return i != nil && i.Tags != nil
}

type imageEnvelope struct {
	Image *Image `json:"image"`
}

// Stats counts the requests a client issued.
type Stats struct {
	Requests int
	Retries  int
}

// Client fetches image records. It is not safe for concurrent use.
type Client struct {
	baseURL             string
	apiKey              string
	filterID            int64
	userAgent           string
	httpClient          *http.Client
	clock               Clock
	limiter             *limiter
	retryDelay          time.Duration
	notImplementedDelay time.Duration
	logger              *slog.Logger
	stats               Stats
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock injects the time source used for pacing and retry delays.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRetryDelays overrides the wait before retrying a generic non-success
// status and a 501 Not Implemented status.
func WithRetryDelays(generic, notImplemented time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = generic
		c.notImplementedDelay = notImplemented
	}
}

// WithAPIKey attaches the user's API key to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithFilterID selects a server-side filter; zero keeps the account default.
func WithFilterID(id int64) Option {
	return func(c *Client) {
		c.filterID = id
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(agent)
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API rooted at baseURL (for example
// https://derpibooru.org/api/v1/json). interval is the minimum spacing
// between request starts.
func New(baseURL string, interval time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("booru base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse booru base url: %w", err)
	}
	if interval < 0 {
		return nil, errors.New("request interval must not be negative")
	}
	client := &Client{
		baseURL:             strings.TrimRight(baseURL, "/"),
		httpClient:          &http.Client{},
		clock:               SystemClock{},
		retryDelay:          defaultRetryDelay,
		notImplementedDelay: defaultNotImplementedDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "booru")
	client.limiter = newLimiter(interval, client.clock)
	return client, nil
}

// Stats returns request counters accumulated since the client was created.
func (c *Client) Stats() Stats {
	return c.stats
}

// Image fetches the record for id. Non-success statuses are retried until a
// success arrives or ctx is done.
func (c *Client) Image(ctx context.Context, id uint64) (*Image, error) {
	endpoint := c.imageURL(id)
	for attempt := 1; ; attempt++ {
		if err := c.limiter.wait(ctx); err != nil {
			return nil, err
		}
		c.stats.Requests++

		status, body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch image %d: %w", id, err)
		}
		if status >= 200 && status < 300 {
			return decodeImage(id, body)
		}

		delay := c.retryDelay
		if status == http.StatusNotImplemented {
			delay = c.notImplementedDelay
		}
		c.logger.Warn("image request failed; retrying",
			logging.Uint64("image_id", id),
			logging.Int("status", status),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
		)
		c.stats.Retries++
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) imageURL(id uint64) string {
	endpoint := c.baseURL + "/images/" + strconv.FormatUint(id, 10)
	params := url.Values{}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	if c.filterID > 0 {
		params.Set("filter_id", strconv.FormatInt(c.filterID, 10))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return endpoint
}

// get performs one request. Error bodies are read only partially; success
// bodies are read in full.
func (c *Client) get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return resp.StatusCode, nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response (latency=%v): %w", latency, err)
	}
	return resp.StatusCode, body, nil
}

func decodeImage(id uint64, body []byte) (*Image, error) {
	var payload imageEnvelope
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: image %d: %v", ErrMalformedResponse, id, err)
	}
	if payload.Image == nil {
		return nil, fmt.Errorf("%w: image %d: missing image object", ErrMalformedResponse, id)
	}
	if payload.Image.ID == 0 {
		payload.Image.ID = id
	}
	return payload.Image, nil
}
