// Package analytics implements the per-tenant stats aggregation: a single
// multi-CTE SQL query producing every facet in one round trip, a
// Redis-backed result cache, and the HTTP handler serving
// GET /tenants/{tenant_id}/stats. Grounded on the document-store DOMAIN
// STACK adaptation described in SPEC_FULL.md and the teacher's
// pkg/alert.Deduplicator Redis cache-aside idiom for the caching layer.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	apidb "github.com/ticketsync/ingestor/internal/db"
)

// Stats is the full analytics payload for one tenant over a time window.
type Stats struct {
	TotalTickets            int              `json:"total_tickets"`
	ByStatus                map[string]int   `json:"by_status"`
	UrgencyHighRatio        float64          `json:"urgency_high_ratio"`
	NegativeSentimentRatio  float64          `json:"negative_sentiment_ratio"`
	HourlyTrend             []HourlyBucket   `json:"hourly_trend"`
	TopKeywords             []string         `json:"top_keywords"`
	AtRiskCustomers         []AtRiskCustomer `json:"at_risk_customers"`
}

// HourlyBucket is one hour's ticket count in the trailing-24h trend.
type HourlyBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// AtRiskCustomer is a customer with 2+ high-urgency tickets, of any status.
type AtRiskCustomer struct {
	CustomerID  string   `json:"customer_id"`
	Count       int      `json:"count"`
	ExternalIDs []string `json:"external_ids"`
}

// rawStats mirrors the shape of the aggregation query's JSON output
// columns before ratio computation and rounding.
type rawStats struct {
	Total            int              `json:"total"`
	ByStatus         map[string]int   `json:"by_status"`
	UrgencyCounts    map[string]int   `json:"urgency_counts"`
	SentimentCounts  map[string]int   `json:"sentiment_counts"`
	HourlyTrend      []HourlyBucket   `json:"hourly_trend"`
	TopKeywords      []string         `json:"top_keywords"`
	AtRiskCustomers  []AtRiskCustomer `json:"at_risk_customers"`
}

// Aggregator computes tenant analytics directly against the document
// store, bypassing any cache. Use Cache to wrap it with Redis cache-aside.
type Aggregator struct {
	db apidb.DBTX
}

// NewAggregator builds an Aggregator over the given database handle.
func NewAggregator(db apidb.DBTX) *Aggregator {
	return &Aggregator{db: db}
}

// stopWords are excluded from the keyword facet, in addition to the
// 4-letter-minimum alphabetic shape enforced in SQL.
var stopWords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "is", "are", "was", "were",
}

// GetTenantStats runs the full aggregation for tenantID over [from, to].
func (a *Aggregator) GetTenantStats(ctx context.Context, tenantID string, from, to time.Time) (Stats, error) {
	var raw []byte

	row := a.db.QueryRow(ctx, `
		WITH scope AS (
			SELECT * FROM tickets
			WHERE tenant_id = $1 AND deleted_at IS NULL AND created_at BETWEEN $2 AND $3
		),
		total_count AS (
			SELECT count(*) AS total FROM scope
		),
		status_counts AS (
			SELECT coalesce(json_object_agg(status, cnt), '{}'::json) AS by_status
			FROM (SELECT status, count(*) AS cnt FROM scope GROUP BY status) s
		),
		urgency_counts AS (
			SELECT coalesce(json_object_agg(urgency, cnt), '{}'::json) AS urgency_counts
			FROM (SELECT urgency, count(*) AS cnt FROM scope GROUP BY urgency) u
		),
		sentiment_counts AS (
			SELECT coalesce(json_object_agg(sentiment, cnt), '{}'::json) AS sentiment_counts
			FROM (SELECT sentiment, count(*) AS cnt FROM scope GROUP BY sentiment) se
		),
		hourly AS (
			SELECT coalesce(json_agg(json_build_object('hour', hour, 'count', cnt) ORDER BY hour ASC), '[]'::json) AS hourly_trend
			FROM (
				SELECT to_char(date_trunc('hour', created_at), 'YYYY-MM-DD HH24:00:00') AS hour, count(*) AS cnt
				FROM scope
				WHERE created_at >= $5 - interval '24 hours'
				GROUP BY 1
				ORDER BY 1 ASC
				LIMIT 24
			) h
		),
		keywords AS (
			SELECT coalesce(json_agg(word), '[]'::json) AS top_keywords
			FROM (
				SELECT word, count(*) AS cnt
				FROM scope, unnest(string_to_array(lower(message), ' ')) AS word
				WHERE word ~ '^[a-z]{4,}$' AND NOT (word = ANY($4))
				GROUP BY word
				ORDER BY cnt DESC
				LIMIT 10
			) k
		),
		at_risk AS (
			SELECT coalesce(json_agg(json_build_object('customer_id', customer_id, 'count', cnt, 'external_ids', ids) ORDER BY cnt DESC), '[]'::json) AS at_risk_customers
			FROM (
				SELECT customer_id, count(*) AS cnt, array_agg(external_id) AS ids
				FROM scope
				WHERE urgency = 'high' AND customer_id != ''
				GROUP BY customer_id
				HAVING count(*) >= 2
				ORDER BY count(*) DESC
				LIMIT 10
			) r
		)
		SELECT json_build_object(
			'total', (SELECT total FROM total_count),
			'by_status', (SELECT by_status FROM status_counts),
			'urgency_counts', (SELECT urgency_counts FROM urgency_counts),
			'sentiment_counts', (SELECT sentiment_counts FROM sentiment_counts),
			'hourly_trend', (SELECT hourly_trend FROM hourly),
			'top_keywords', (SELECT top_keywords FROM keywords),
			'at_risk_customers', (SELECT at_risk_customers FROM at_risk)
		)
	`, tenantID, from.UTC(), to.UTC(), stopWords, time.Now().UTC())

	if err := row.Scan(&raw); err != nil {
		return Stats{}, fmt.Errorf("analytics: aggregation query failed: %w", err)
	}

	var rs rawStats
	if err := json.Unmarshal(raw, &rs); err != nil {
		return Stats{}, fmt.Errorf("analytics: decoding aggregation result: %w", err)
	}

	return buildStats(rs), nil
}

func buildStats(rs rawStats) Stats {
	var highUrgency, negativeSentiment int
	for urgency, n := range rs.UrgencyCounts {
		if urgency == "high" {
			highUrgency += n
		}
	}
	for sentiment, n := range rs.SentimentCounts {
		if sentiment == "negative" {
			negativeSentiment += n
		}
	}

	byStatus := rs.ByStatus
	if byStatus == nil {
		byStatus = map[string]int{}
	}

	return Stats{
		TotalTickets:           rs.Total,
		ByStatus:               byStatus,
		UrgencyHighRatio:        ratio(highUrgency, rs.Total),
		NegativeSentimentRatio: ratio(negativeSentiment, rs.Total),
		HourlyTrend:            nonNilBuckets(rs.HourlyTrend),
		TopKeywords:            nonNilKeywords(rs.TopKeywords),
		AtRiskCustomers:        nonNilCustomers(rs.AtRiskCustomers),
	}
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return math.Round(float64(n)/float64(total)*1000) / 1000
}

func nonNilBuckets(b []HourlyBucket) []HourlyBucket {
	if b == nil {
		return []HourlyBucket{}
	}
	return b
}

func nonNilKeywords(k []string) []string {
	if k == nil {
		return []string{}
	}
	return k
}

func nonNilCustomers(c []AtRiskCustomer) []AtRiskCustomer {
	if c == nil {
		return []AtRiskCustomer{}
	}
	return c
}
