package remote

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"replicafs/pkg/log"
)

// BackendError represents an error response from a storage node.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return "node returned status " + http.StatusText(e.StatusCode) + ": " + e.Message
	}
	return "node returned status " + http.StatusText(e.StatusCode)
}

// CreateRetryableClient creates a retryable HTTP client for node requests.
func CreateRetryableClient(retryMax int, retryWaitMin, retryWaitMax time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.Logger = nil // Disable retryablehttp logging
	// Only retry on connection/timeout errors so node error responses are
	// reported as they are.
	client.CheckRetry = customRetryPolicy
	// Hand the last response or error back instead of a generic "giving up" error.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// customRetryPolicy only retries on connection/timeout errors, not HTTP status errors.
func customRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	// Do not retry if context is cancelled
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	// If we got a response, don't retry - report the response as-is
	if resp != nil {
		return false, nil
	}

	// retryablehttp reports the transport error itself once retries run out.
	return isTimeoutOrConnectionError(err), nil
}

// isTimeoutOrConnectionError reports whether err means the node could not be
// reached at all, as opposed to the node answering with an error.
func isTimeoutOrConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr) && !errors.Is(err, context.Canceled)
}

// readError turns a non-2xx response into a BackendError.
func readError(resp *http.Response) error {
	const maxMessage = 512
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMessage))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read node error body")
	}
	return &BackendError{StatusCode: resp.StatusCode, Message: string(body)}
}

// closeBody drains and closes a response body.
func closeBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close response body")
	}
}
