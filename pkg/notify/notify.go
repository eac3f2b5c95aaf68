// Package notify implements the fire-and-forget outbound notifier:
// send_notification schedules a goroutine and returns immediately, and the
// background task retries through a circuit breaker with custom backoff,
// per spec §4.6. Grounded on the teacher's webhook dispatch idiom
// (pkg/alert/webhook.go) for the HTTP-POST-with-retry shape, generalized
// to use cenkalti/backoff/v5's Retry driver with a hand-rolled BackOff
// implementing the spec's exact delay formula.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ticketsync/ingestor/internal/telemetry"
	"github.com/ticketsync/ingestor/pkg/breaker"
)

// Payload is the body POSTed to the notify endpoint.
type Payload struct {
	TicketID string `json:"ticket_id"`
	TenantID string `json:"tenant_id"`
	Urgency  string `json:"urgency"`
	Reason   string `json:"reason"`
}

// Notifier sends fire-and-forget HTTP notifications for high-urgency
// tickets, gated by a named circuit breaker.
type Notifier struct {
	url        string
	httpClient *http.Client
	breakers   *breaker.Registry
	logger     *slog.Logger
	baseDelay  time.Duration
	maxRetries int
}

// New builds a Notifier posting to url, gated by the "notify" breaker in
// breakers.
func New(url string, timeout time.Duration, breakers *breaker.Registry, logger *slog.Logger, baseDelay time.Duration, maxRetries int) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		breakers:   breakers,
		logger:     logger,
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
	}
}

// delayBackOff implements backoff.BackOff with the spec's exact formula:
// base_delay * 2^attempt, plus uniform jitter in [0, 0.3*delay).
type delayBackOff struct {
	baseDelay time.Duration
	attempt   int
}

func (b *delayBackOff) NextBackOff() time.Duration {
	delay := b.baseDelay * time.Duration(int64(1)<<uint(b.attempt))
	b.attempt++
	jitter := time.Duration(rand.Float64() * 0.3 * float64(delay))
	return delay + jitter
}

// Send schedules an asynchronous notification attempt and returns
// immediately. It never propagates an error to the caller; terminal
// failures are logged.
func (n *Notifier) Send(ctx context.Context, p Payload) {
	go n.deliver(p)
}

func (n *Notifier) deliver(p Payload) {
	ctx := context.Background()
	cb := n.breakers.Get("notify")

	bo := &delayBackOff{baseDelay: n.baseDelay}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		_, err := cb.Execute(ctx, func(ctx context.Context) (any, error) {
			return nil, n.post(ctx, p)
		})
		if err != nil {
			if breaker.IsOpenError(err) {
				telemetry.NotifierAttemptsTotal.WithLabelValues("circuit_open").Inc()
				n.logger.Warn("notify: circuit open, aborting retries",
					"ticket_id", p.TicketID, "tenant_id", p.TenantID)
				return struct{}{}, backoff.Permanent(err)
			}
			telemetry.NotifierAttemptsTotal.WithLabelValues("failure").Inc()
			return struct{}{}, err
		}
		telemetry.NotifierAttemptsTotal.WithLabelValues("success").Inc()
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(n.maxRetries)))

	if err != nil {
		n.logger.Error("notify: terminal failure",
			"ticket_id", p.TicketID, "tenant_id", p.TenantID, "error", err)
	}
}

func (n *Notifier) post(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
