package bluesky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"fotos/internal/metrics"
)

// DefaultBaseURL is the public, unauthenticated AppView endpoint.
const DefaultBaseURL = "https://public.api.bsky.app/xrpc"

const userAgent = "fotos-gallery/1.0"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// ErrPostNotFound is returned when the API answers but the post is gone.
var ErrPostNotFound = errors.New("bluesky: post not found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	// Code and Message come from the XRPC error body when present.
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bluesky %s: status %d: %s: %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("bluesky %s: status %d", e.Endpoint, e.StatusCode)
}

// Client calls the two read-only feed endpoints the gallery needs.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL and a nil
// httpClient gets a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GetPost fetches a single post view via app.bsky.feed.getPosts.
func (c *Client) GetPost(ctx context.Context, uri string) (*PostView, error) {
	body, err := c.get(ctx, "getPosts", url.Values{"uris": {uri}})
	if err != nil {
		return nil, err
	}

	posts := gjson.GetBytes(body, "posts")
	if !posts.IsArray() {
		return nil, fmt.Errorf("bluesky getPosts: malformed response")
	}
	first := posts.Get("0")
	if !first.Exists() {
		return nil, ErrPostNotFound
	}

	post := parsePost(first)
	return &post, nil
}

// GetThread fetches a post with its replies via app.bsky.feed.getPostThread.
// depth limits how many reply levels are returned.
func (c *Client) GetThread(ctx context.Context, uri string, depth int) (*ThreadView, error) {
	params := url.Values{"uri": {uri}}
	if depth >= 0 {
		params.Set("depth", strconv.Itoa(depth))
	}

	body, err := c.get(ctx, "getPostThread", params)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == "NotFound" {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	thread := gjson.GetBytes(body, "thread")
	if !thread.Exists() {
		return nil, fmt.Errorf("bluesky getPostThread: malformed response")
	}
	if thread.Get("notFound").Bool() || strings.HasSuffix(thread.Get("$type").String(), "#notFoundPost") {
		return nil, ErrPostNotFound
	}

	view := parseThread(thread)
	return &view, nil
}

func (c *Client) get(ctx context.Context, method string, params url.Values) ([]byte, error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.BlueskyRequestsTotal.WithLabelValues(method, status).Inc()
		metrics.BlueskyRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	endpoint := c.baseURL + "/app.bsky.feed." + method + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bluesky %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("bluesky %s: read body: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Endpoint:   method,
			StatusCode: resp.StatusCode,
			Code:       gjson.GetBytes(body, "error").String(),
			Message:    gjson.GetBytes(body, "message").String(),
		}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("bluesky %s: invalid JSON response", method)
	}

	status = "success"
	return body, nil
}
