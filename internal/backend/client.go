// Package backend implements the single HTTP client that issues requests
// to the Ollama-compatible upstream.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBodyPrefix bounds how much of a non-2xx response body is read
// into the UpstreamError detail.
const maxErrorBodyPrefix = 4096

// readChunkSize is the buffer size used to pump bytes off the backend
// response as they arrive.
const readChunkSize = 32 * 1024

// Client issues POSTs to <base><path> and exposes the response as a byte
// stream with cancellation, matching Ollama-compatible backends.
type Client struct {
	base       string
	httpClient *http.Client
}

// New creates a backend client whose transport is tuned for long-lived
// streaming connections. The timeout argument is not applied by the
// client: each call is bounded only by the context passed to Execute.
func New(base string, timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		base: base,
		httpClient: &http.Client{
			Transport: transport,
			// No Timeout here: the per-call deadline is applied via the
			// context passed to Execute, so it can be cancelled early by
			// client-disconnect or shutdown without waiting for the full
			// duration.
		},
	}
}

// Outcome is the terminal result of one Execute call, mirroring the
// bridge's End status vocabulary.
type Outcome struct {
	Status  OutcomeStatus
	Code    int
	Detail  string
	ErrText string
}

// OutcomeStatus enumerates how an Execute call ended.
type OutcomeStatus int

const (
	OutcomeOK OutcomeStatus = iota
	OutcomeUpstreamError
	OutcomeTimeout
	OutcomeCancelled
)

// ChunkFunc is invoked once per chunk of bytes read from the backend
// response. Returning a non-nil error aborts the stream (used to signal
// that the bridge's consumer is gone).
type ChunkFunc func(chunk []byte) error

// Execute POSTs body to <base><path> with Content-Type application/json,
// then pumps the response through onChunk as bytes arrive. ctx governs
// both connection establishment and the read loop: on cancellation the
// in-flight call is aborted promptly and Execute returns OutcomeCancelled
// (or OutcomeTimeout if ctx's deadline, rather than an external cancel,
// is what elapsed).
func (c *Client) Execute(ctx context.Context, path string, body []byte, onChunk ChunkFunc) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return Outcome{Status: OutcomeUpstreamError, ErrText: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return classifyCancellation(ctx)
		}
		return Outcome{Status: OutcomeUpstreamError, ErrText: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		prefix, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPrefix))
		return Outcome{Status: OutcomeUpstreamError, Code: resp.StatusCode, Detail: string(prefix)}
	}

	buf := make([]byte, readChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if chunkErr := onChunk(buf[:n]); chunkErr != nil {
				return classifyCancellation(ctx)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return Outcome{Status: OutcomeOK}
			}
			if ctx.Err() != nil {
				return classifyCancellation(ctx)
			}
			return Outcome{Status: OutcomeUpstreamError, ErrText: readErr.Error()}
		}
	}
}

func classifyCancellation(ctx context.Context) Outcome {
	if ctx.Err() == context.DeadlineExceeded {
		return Outcome{Status: OutcomeTimeout}
	}
	return Outcome{Status: OutcomeCancelled}
}

// String renders an Outcome for logging.
func (o Outcome) String() string {
	switch o.Status {
	case OutcomeOK:
		return "ok"
	case OutcomeUpstreamError:
		return fmt.Sprintf("upstream_error code=%d detail=%q err=%q", o.Code, o.Detail, o.ErrText)
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
