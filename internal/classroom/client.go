package classroom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the Classroom REST API root.
const DefaultBaseURL = "https://classroom.googleapis.com/v1"

// Retry and backoff constants.
const (
	maxRetries       = 5
	baseBackoff      = 1 * time.Second
	maxBackoff       = 60 * time.Second
	backoffFactor    = 2.0
	jitterFraction   = 0.25
	defaultUserAgent = "classroom-go/0.1"
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer
// (classroom package); auth.Credential is the real implementation.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the Classroom API.
// It handles request construction, authentication, retry with
// exponential backoff, and error classification. A Client is bound to
// one credential for its whole life; rebuild it after re-authenticating.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	userAgent  string

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Classroom API client.
// baseURL is typically DefaultBaseURL. An empty userAgent uses the default.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		userAgent:  userAgent,
		sleepFunc:  timeSleep,
	}
}

// Do executes an HTTP request against the Classroom API.
// The path is appended to the client's base URL. A body that implements
// io.Seeker is rewound before each retry; other bodies are sent once.
// POST creates resources, so it is resent only after a 429 or a failed
// dial, where the server cannot have acted on it.
// Non-2xx responses are returned as *RemoteError, network failures wrap
// ErrTransport. The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int
	for {
		if attempt > 0 {
			if err := rewindBody(body); err != nil {
				return nil, err
			}
		}

		tok, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("classroom: obtaining token: %w", err)
		}

		resp, err := c.doOnce(ctx, method, url, tok, body)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("classroom: request canceled: %w", ctx.Err())
			}

			if canRetry(attempt, body) && (method != http.MethodPost || neverSent(err)) {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("classroom: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("%w: %s %s after %d attempts: %w", ErrTransport, method, path, attempt+1, err)
		}

		// 2xx: success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		// Read and close body for error responses.
		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if retryableFor(method, resp.StatusCode) && canRetry(attempt, body) {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("classroom: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, newRemoteError(resp.StatusCode, errBody)
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url, tok string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("classroom: decoding response for %s: %w", path, err)
	}

	return nil
}

// postJSON marshals in, POSTs it, and decodes the response into out.
// The body is a bytes.Reader so retries can rewind it.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("classroom: marshaling request for %s: %w", path, err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("classroom: decoding response for %s: %w", path, err)
	}

	return nil
}

// postCreate is postJSON for create endpoints where 409 means the entity
// already exists. It returns created=false with a nil error in that case;
// every other failure is returned unchanged.
func (c *Client) postCreate(ctx context.Context, path string, in, out any) (bool, error) {
	err := c.postJSON(ctx, path, in, out)
	if IsConflict(err) {
		c.logger.Debug("create returned conflict, entity already exists",
			slog.String("path", path),
		)

		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// canRetry reports whether another attempt is allowed. A body that cannot
// be rewound was already consumed and is never resent.
func canRetry(attempt int, body io.Reader) bool {
	if attempt >= maxRetries {
		return false
	}

	if body == nil {
		return true
	}

	_, ok := body.(io.Seeker)

	return ok
}

// retryableFor narrows isRetryable for POST: a 5xx or 408 may arrive after
// the server already created the resource.
func retryableFor(method string, code int) bool {
	if method == http.MethodPost {
		return code == http.StatusTooManyRequests
	}

	return isRetryable(code)
}

// neverSent reports whether err happened while dialing, before any byte
// of the request reached the server.
func neverSent(err error) bool {
	var opErr *net.OpError

	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// rewindBody seeks a retryable body back to the start.
func rewindBody(body io.Reader) error {
	s, ok := body.(io.Seeker)
	if !ok {
		return nil
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("classroom: rewinding request body for retry: %w", err)
	}

	return nil
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
