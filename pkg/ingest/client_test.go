package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchPageWithRetrySucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tickets":[{"external_id":"x1","subject":"s","message":"m"}],"pagination":{"total_pages":3}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	page, err := c.FetchPageWithRetry(context.Background(), "tenant-a", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page == nil || len(page.Tickets) != 1 || page.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestFetchPageWithRetryRetriesAfter429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tickets":[],"pagination":{"total_pages":1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	page, err := c.FetchPageWithRetry(context.Background(), "tenant-a", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page == nil {
		t.Fatal("expected a page with pagination info even when tickets is empty")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestFetchPageWithRetryReturnsNilOnEmptyTerminalPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tickets":[],"pagination":{"total_pages":0}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	page, err := c.FetchPageWithRetry(context.Background(), "tenant-a", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page != nil {
		t.Fatalf("expected nil page to signal no further pages, got %+v", page)
	}
}

func TestFetchPageWithRetryExhaustsAndFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	start := time.Now()
	_, err := c.FetchPageWithRetry(context.Background(), "tenant-a", 1)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	// 2^0 + 2^1 = 3s of backoff between the 3 attempts.
	if time.Since(start) < 2*time.Second {
		t.Fatalf("expected retries to back off, elapsed %v", time.Since(start))
	}
}
