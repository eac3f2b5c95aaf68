package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ticketsync/ingestor/pkg/ticket"
)

// ExternalTicket is the wire shape of one ticket as returned by the
// upstream source.
type ExternalTicket struct {
	ExternalID string    `json:"external_id"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (e ExternalTicket) toDomain() ticket.External {
	return ticket.External{
		ExternalID: e.ExternalID,
		Subject:    e.Subject,
		Message:    e.Message,
		Status:     e.Status,
		CustomerID: e.CustomerID,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// Page is one page of the upstream ticket listing response.
type Page struct {
	Tickets    []ExternalTicket `json:"tickets"`
	Pagination struct {
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// Client fetches pages of tickets from the external ticket source.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL with a 30s timeout, per spec §4.7.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchPageWithRetry fetches one page for tenantID in up to 3 attempts. A
// 429 with a positive Retry-After sleeps that delay instead of the
// exponential backoff (2^attempt seconds) used for other failures; each 429
// still uses one of the 3 attempts. A nil, nil return means the upstream
// source reports no further pages, or that the last attempt was a 429.
func (c *Client) FetchPageWithRetry(ctx context.Context, tenantID string, page int) (*Page, error) {
	const maxAttempts = 3

	rateLimited := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		p, retryAfter, err := c.fetchOnce(ctx, tenantID, page)
		if err == nil {
			return p, nil
		}
		rateLimited = retryAfter > 0
		if rateLimited {
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return nil, err
			}
			continue // 429 sleeps Retry-After instead of the exponential backoff
		}

		if attempt == maxAttempts-1 {
			return nil, fmt.Errorf("ingest: fetch page %d for tenant %s failed after %d attempts: %w", page, tenantID, maxAttempts, err)
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
	}
	if rateLimited {
		// The last attempt was a 429: treat like the upstream source
		// reporting no further pages, so ingestion ends the run cleanly
		// instead of marking it failed.
		return nil, nil
	}
	return nil, fmt.Errorf("ingest: exhausted retries fetching page %d for tenant %s", page, tenantID)
}

// fetchOnce performs a single HTTP attempt. retryAfter > 0 signals a 429
// whose Retry-After delay the caller sleeps in place of its backoff.
func (c *Client) fetchOnce(ctx context.Context, tenantID string, page int) (*Page, time.Duration, error) {
	url := fmt.Sprintf("%s/external/support-tickets?tenant_id=%s&page=%d", c.baseURL, tenantID, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if h := resp.Header.Get("Retry-After"); h != "" {
			if secs, err := strconv.Atoi(h); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, fmt.Errorf("ingest: rate limited by external source")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("ingest: external source returned status %d", resp.StatusCode)
	}

	var p Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, 0, fmt.Errorf("ingest: decoding page response: %w", err)
	}
	if len(p.Tickets) == 0 && p.Pagination.TotalPages == 0 {
		return nil, 0, nil
	}
	return &p, 0, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
