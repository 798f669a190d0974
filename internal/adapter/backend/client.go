// Package backend implements the LyricsAPI interface against the REST backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read into a message.
const maxErrorBody = 4 << 10

// Client talks to the lyrics endpoints of the backend.
//
// Thread-safety: This implementation is thread-safe.
type Client struct {
	logger    *slog.Logger
	baseURL   string
	token     string
	userAgent string
	timeout   time.Duration
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout. A client passed with
// WithHTTPClient is copied first and never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.NewValidationError("baseURL", baseURL, "must be an absolute http(s) URL")
	}

	c := &Client{
		logger:    slog.New(slog.DiscardHandler),
		baseURL:   strings.TrimRight(u.String(), "/"),
		userAgent: "beatstage",
		http:      &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 && c.http.Timeout != c.timeout {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// lyricsResponse is the wire form of GET /api/tracks/{id}/lyrics.
type lyricsResponse struct {
	TrackID  string                `json:"track_id"`
	Status   domain.LyricsStatus   `json:"status"`
	Segments []domain.LyricSegment `json:"segments"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetLyrics fetches lyrics and their transcription status.
// A 404 is reported as domain.ErrLyricsNotFound.
func (c *Client) GetLyrics(ctx context.Context, trackID string) (*domain.LyricsTrack, error) {
	const op = "get_lyrics"

	resp, err := c.do(ctx, op, http.MethodGet, c.trackURL(trackID, "lyrics"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return nil, domain.NewAPIError(op, resp.StatusCode, "no lyrics for track", domain.ErrLyricsNotFound)
	}
	if resp.StatusCode/100 != 2 {
		return nil, c.statusError(op, resp)
	}

	var body lyricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.NewAPIError(op, resp.StatusCode, "invalid response body", err)
	}

	if body.TrackID == "" {
		body.TrackID = trackID
	}
	if body.Status == "" && len(body.Segments) > 0 {
		body.Status = domain.LyricsCompleted
	}

	c.logger.Debug("lyrics fetched",
		slog.String("track_id", trackID),
		slog.String("status", string(body.Status)),
		slog.Int("segments", len(body.Segments)))

	return &domain.LyricsTrack{
		TrackID:  body.TrackID,
		Status:   body.Status,
		Segments: body.Segments,
	}, nil
}

// RequestTranscription asks the backend to transcribe a track.
func (c *Client) RequestTranscription(ctx context.Context, trackID string) error {
	const op = "transcribe"

	resp, err := c.do(ctx, op, http.MethodPost, c.trackURL(trackID, "transcribe"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return c.statusError(op, resp)
	}
	drain(resp.Body)

	c.logger.Debug("transcription requested", slog.String("track_id", trackID))
	return nil
}

func (c *Client) trackURL(trackID, action string) string {
	return c.baseURL + "/api/tracks/" + url.PathEscape(trackID) + "/" + action
}

func (c *Client) do(ctx context.Context, op, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, domain.NewAPIError(op, 0, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewAPIError(op, 0, "request failed", err)
	}
	return resp, nil
}

// statusError builds an APIError from a non-2xx response.
func (c *Client) statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "":
			message = body.Error
		case body.Message != "":
			message = body.Message
		}
	} else if s := strings.TrimSpace(string(raw)); s != "" {
		message = s
	}

	c.logger.Debug("backend error",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("message", message))

	return domain.NewAPIError(op, resp.StatusCode, message, nil)
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
}

// IsNotFound reports whether err means the backend has no lyrics.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrLyricsNotFound)
}

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("backend(%s)", c.baseURL)
}

// Verify that Client implements the LyricsAPI interface
var _ ports.LyricsAPI = (*Client)(nil)
