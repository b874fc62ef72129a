package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestExecute_OK_StreamsChunksInOrder verifies a 200 response streams its
// body through onChunk in emission order and returns OutcomeOK.
func TestExecute_OK_StreamsChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chunk-one"))
		flusher.Flush()
		w.Write([]byte("chunk-two"))
		flusher.Flush()
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)

	var got []byte
	outcome := c.Execute(context.Background(), "/api/generate", []byte(`{}`), func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})

	if outcome.Status != OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v", outcome)
	}
	if string(got) != "chunk-onechunk-two" {
		t.Errorf("expected concatenated chunks in order, got %q", got)
	}
}

// TestExecute_NonTwoXX_ReturnsUpstreamError verifies a non-2xx response
// is classified as OutcomeUpstreamError with the status code preserved.
func TestExecute_NonTwoXX_ReturnsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	outcome := c.Execute(context.Background(), "/api/generate", []byte(`{}`), func([]byte) error { return nil })

	if outcome.Status != OutcomeUpstreamError {
		t.Fatalf("expected OutcomeUpstreamError, got %v", outcome)
	}
	if outcome.Code != http.StatusInternalServerError {
		t.Errorf("expected code 500, got %d", outcome.Code)
	}
}

// TestExecute_UpstreamDown_ReturnsUpstreamError verifies a connection
// refused target is classified as OutcomeUpstreamError, not a timeout.
func TestExecute_UpstreamDown_ReturnsUpstreamError(t *testing.T) {
	c := New("http://127.0.0.1:1", 2*time.Second)
	outcome := c.Execute(context.Background(), "/api/generate", []byte(`{}`), func([]byte) error { return nil })

	if outcome.Status != OutcomeUpstreamError {
		t.Fatalf("expected OutcomeUpstreamError, got %v", outcome)
	}
}

// TestExecute_ContextCancelled_ReturnsCancelled verifies an externally
// cancelled context (client gone) is distinguished from a timeout.
func TestExecute_ContextCancelled_ReturnsCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("first"))
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	outcome := c.Execute(ctx, "/api/generate", []byte(`{}`), func(chunk []byte) error {
		cancel()
		return context.Canceled
	})

	if outcome.Status != OutcomeCancelled {
		t.Fatalf("expected OutcomeCancelled, got %v", outcome)
	}
}

// TestExecute_DeadlineExceeded_ReturnsTimeout verifies a context deadline
// elapsing mid-stream is classified as OutcomeTimeout.
func TestExecute_DeadlineExceeded_ReturnsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("first"))
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := c.Execute(ctx, "/api/generate", []byte(`{}`), func(chunk []byte) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	if outcome.Status != OutcomeTimeout {
		t.Fatalf("expected OutcomeTimeout, got %v", outcome)
	}
}
