package notify

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ticketsync/ingestor/pkg/breaker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierSendSucceedsOnFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, breaker.NewRegistry(5, 30*time.Second), discardLogger(), 10*time.Millisecond, 3)

	done := make(chan struct{})
	go func() {
		n.deliver(Payload{TicketID: "t1", TenantID: "tenant-a", Urgency: "high", Reason: "test"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deliver did not complete in time")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestNotifierRetriesOnFailureThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, breaker.NewRegistry(5, 30*time.Second), discardLogger(), 5*time.Millisecond, 3)

	done := make(chan struct{})
	go func() {
		n.deliver(Payload{TicketID: "t1", TenantID: "tenant-a", Urgency: "high", Reason: "test"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deliver did not complete in time")
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", calls)
	}
}

func TestDelayBackOffGrowsExponentially(t *testing.T) {
	bo := &delayBackOff{baseDelay: 100 * time.Millisecond}

	d0 := bo.NextBackOff()
	d1 := bo.NextBackOff()
	d2 := bo.NextBackOff()

	if d0 < 100*time.Millisecond || d0 >= 130*time.Millisecond {
		t.Fatalf("expected first delay in [100ms, 130ms), got %v", d0)
	}
	if d1 < 200*time.Millisecond || d1 >= 260*time.Millisecond {
		t.Fatalf("expected second delay in [200ms, 260ms), got %v", d1)
	}
	if d2 < 400*time.Millisecond || d2 >= 520*time.Millisecond {
		t.Fatalf("expected third delay in [400ms, 520ms), got %v", d2)
	}
}
