package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	OK                    int = 200
	BAD_REQUEST           int = 400
	UNAUTHORIZED          int = 401
	FORBIDDEN             int = 403
	DATA_NOT_FOUND        int = 404
	RATE_LIMIT_EXCEEDED   int = 429
	INTERNAL_SERVER_ERROR int = 500
	BAD_GATEWAY           int = 502
	SERVICE_UNAVAILABLE   int = 503
	GATEWAY_TIMEOUT       int = 504
)

var statusMessages = map[int]string{
	OK:                    "OK",
	BAD_REQUEST:           "Bad request",
	UNAUTHORIZED:          "Unauthorized",
	FORBIDDEN:             "Forbidden",
	DATA_NOT_FOUND:        "Data not found",
	RATE_LIMIT_EXCEEDED:   "Rate limit exceeded",
	INTERNAL_SERVER_ERROR: "Internal server error",
	BAD_GATEWAY:           "Bad gateway",
	SERVICE_UNAVAILABLE:   "Service unavailable",
	GATEWAY_TIMEOUT:       "Gateway timeout",
}

// maxBody caps how much of a response we are willing to read.
const maxBody = 1 << 20

// Fetcher performs bounded GET requests against informational JSON APIs.
type Fetcher struct {
	client *http.Client
	header map[string]string
}

// NewFetcher creates a fetcher whose every request is cut after timeout.
func NewFetcher(timeout time.Duration, header map[string]string) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}, header: header}
}

// StatusError maps an HTTP status code onto the shared error taxonomy.
// Returns nil for 2xx codes.
func StatusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == UNAUTHORIZED || code == FORBIDDEN:
		return ErrUnauthorized
	case code == DATA_NOT_FOUND:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, code)
	}
}

// redact drops the query, it may carry API keys.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

// GetJSON requests rawURL and decodes the body into out.
// Body decoding is attempted for error statuses too, so callers can read
// provider error payloads; the returned error still reflects the status.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: could not create request: %v", ErrUpstream, err)
	}
	for key, value := range f.header {
		request.Header.Set(key, value)
	}

	log.WithField("url", redact(request.URL)).Debug("Requesting")
	res, err := f.client.Do(request)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer res.Body.Close()

	message, ok := statusMessages[res.StatusCode]
	if !ok {
		message = "Unknown status"
	}
	log.Debugf("%d %s", res.StatusCode, message)

	stream, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: could not read response: %v", ErrUpstream, err)
	}

	statusErr := StatusError(res.StatusCode)
	if out != nil && len(stream) > 0 {
		if err := json.Unmarshal(stream, out); err != nil && statusErr == nil {
			return fmt.Errorf("%w: malformed response: %v", ErrUpstream, err)
		}
	}
	return statusErr
}
