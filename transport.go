package iconic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/sellerkit/iconic-go/internal/metrics"
)

// Do issues a single API call described by spec and decodes the JSON
// response into dst (skipped when dst is nil or the body is empty). It is
// the escape hatch for endpoints the typed services do not cover.
func (c *Client) Do(ctx context.Context, spec RequestSpec, dst any) error {
	resp, err := c.send(ctx, spec)
	if err != nil {
		return err
	}
	if dst == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// send is the single choke point for all HTTP calls. Per attempt it
// attaches the token (refreshing if stale), signs when required, waits on
// rate-limiter admission, executes the wire call with the configured
// timeout and classifies the outcome. Retryable classifications loop with
// exponential backoff; a Retry-After header overrides the computed delay.
func (c *Client) send(ctx context.Context, spec RequestSpec) (*RawResponse, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	payload, err := normalizePayload(spec.Body)
	if err != nil {
		return nil, err
	}
	var body []byte
	switch p := payload.(type) {
	case nil:
	case []byte:
		body = p
	case json.RawMessage:
		body = p
	default:
		if body, err = json.Marshal(p); err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	if spec.Sign && c.signer == nil {
		return nil, errors.New("iconic: endpoint requires signing but no signing key is configured")
	}

	bo := c.newBackOff()
	attempts := 0
	authRetried := false

	for {
		if err := c.check(); err != nil {
			return nil, err
		}
		attempts++

		resp, usedToken, err := c.attempt(ctx, spec, body)
		if err != nil {
			var authErr *AuthError
			var rlErr *RateLimitError
			if errors.As(err, &authErr) || errors.As(err, &rlErr) ||
				errors.Is(err, ErrClientClosed) || ctx.Err() != nil {
				return nil, err
			}
			// Network or timeout failure.
			if retry, retErr := c.backoffWait(ctx, spec, bo, attempts, nil, err); !retry {
				return nil, retErr
			}
			continue
		}

		switch {
		case resp.Status >= 200 && resp.Status < 300:
			return resp, nil

		case resp.Status == http.StatusUnauthorized:
			// One forced refresh-and-retry, outside the backoff budget.
			if spec.NeedsAuth && !authRetried {
				authRetried = true
				attempts--
				c.tokens.Invalidate(usedToken)
				c.logDebug("token rejected, forcing refresh", "path", spec.Path)
				continue
			}
			msg := fmt.Sprintf("request unauthorized: %s %s", spec.Method, spec.Path)
			if spec.NeedsAuth {
				msg = fmt.Sprintf("request unauthorized after token refresh: %s %s", spec.Method, spec.Path)
			}
			return nil, &AuthError{Message: msg}

		case resp.Status == http.StatusNotFound:
			return nil, &NotFoundError{Method: spec.Method, Path: spec.Path}

		case resp.Status == http.StatusTooManyRequests || resp.Status >= 500:
			if retry, retErr := c.backoffWait(ctx, spec, bo, attempts, resp, c.apiError(spec, resp)); !retry {
				return nil, retErr
			}
			continue

		default:
			return nil, c.apiError(spec, resp)
		}
	}
}

// attempt runs one full request flow and returns the raw response plus the
// token it was sent with.
func (c *Client) attempt(
	ctx context.Context,
	spec RequestSpec,
	body []byte,
) (*RawResponse, string, error) {
	var token string
	if spec.NeedsAuth {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, "", err
		}
		token = tok
	}

	var sig, sigTS string
	if spec.Sign {
		sig, sigTS = c.signer.Sign(spec.Method, spec.Path, body)
	}

	waitStart := time.Now()
	if err := c.bucket.Acquire(ctx); err != nil {
		return nil, token, err
	}
	metrics.RateLimitWaitSeconds.Observe(time.Since(waitStart).Seconds())

	u := c.baseURL + spec.Path
	if len(spec.Query) > 0 {
		u += "?" + spec.Query.Encode()
	}

	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader = http.NoBody
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(wctx, spec.Method, u, bodyReader)
	if err != nil {
		return nil, token, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		ct := spec.ContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if spec.Sign {
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Signature-Timestamp", sigTS)
	}

	metrics.APICallsTotal.WithLabelValues(spec.Method).Inc()
	c.logDebug("sending request", "method", spec.Method, "path", spec.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, token, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, token, fmt.Errorf("reading response body: %w", err)
	}

	return &RawResponse{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   respBody,
	}, token, nil
}

// backoffWait decides whether a retryable failure may actually retry, and
// if so sleeps out the delay. Non-idempotent requests are never retried
// automatically; the classified cause is surfaced as a TransientError so
// the caller can decide.
func (c *Client) backoffWait(
	ctx context.Context,
	spec RequestSpec,
	bo backoff.BackOff,
	attempts int,
	resp *RawResponse,
	cause error,
) (bool, error) {
	if !spec.Idempotent {
		return false, &TransientError{Attempts: attempts, Err: cause}
	}
	if attempts >= c.maxAttempts {
		return false, &TransientError{Attempts: attempts, Err: cause}
	}

	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		return false, &TransientError{Attempts: attempts, Err: cause}
	}
	if resp != nil {
		if ra, ok := retryAfter(resp.Header); ok && ra > delay {
			delay = ra
		}
	}

	metrics.RetriesTotal.Inc()
	c.logWarn("retrying request",
		"method", spec.Method,
		"path", spec.Path,
		"attempt", attempts,
		"delay", delay,
		"cause", cause,
	)

	select {
	case <-time.After(delay):
		return true, nil
	case <-ctx.Done():
		return false, fmt.Errorf("aborted during retry backoff: %w", ctx.Err())
	case <-c.done:
		return false, ErrClientClosed
	}
}

func (c *Client) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffBase
	bo.MaxElapsedTime = c.maxElapsed
	return bo
}

func (c *Client) apiError(spec RequestSpec, resp *RawResponse) *APIError {
	msg := strings.TrimSpace(string(resp.Body))
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(resp.Body, &parsed) == nil {
		switch {
		case parsed.Message != "":
			msg = parsed.Message
		case parsed.Error != "":
			msg = parsed.Error
		}
	}
	if len(msg) > 500 {
		msg = msg[:500]
	}

	e := &APIError{
		Status:    resp.Status,
		Code:      parsed.Code,
		Message:   msg,
		Method:    spec.Method,
		Path:      spec.Path,
		RequestID: http.Header(resp.Header).Get("X-Request-ID"),
	}
	if ra, ok := retryAfter(resp.Header); ok {
		e.RetryAfter = ra
	}
	return e
}

// retryAfter parses a Retry-After header given as delta-seconds or as an
// HTTP-date.
func retryAfter(h map[string][]string) (time.Duration, bool) {
	v := http.Header(h).Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
