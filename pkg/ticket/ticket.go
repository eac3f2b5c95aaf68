// Package ticket implements the ticket document model: storage, the
// change-detection synchroniser, and the HTTP surface for listing,
// reading, and inspecting ticket history. Grounded on the teacher's
// pkg/incident package (incident.go/store.go/handler.go).
package ticket

import "time"

// Ticket is one support ticket, scoped to a tenant.
type Ticket struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	ExternalID     string     `json:"external_id"`
	Subject        string     `json:"subject"`
	Message        string     `json:"message"`
	Status         string     `json:"status"`
	Urgency        string     `json:"urgency"`
	Sentiment      string     `json:"sentiment"`
	RequiresAction bool       `json:"requires_action"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Source         string     `json:"source,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// External is the shape of a ticket as received from the upstream source,
// prior to classification and persistence.
type External struct {
	ExternalID string
	Subject    string
	Message    string
	Status     string
	CustomerID string
	Source     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HistoryEntry is one append-only change record for a ticket.
type HistoryEntry struct {
	ID         string         `json:"id"`
	TicketID   string         `json:"ticket_id"`
	TenantID   string         `json:"tenant_id"`
	Action     string         `json:"action"`
	Changes    map[string]any `json:"changes,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// History actions.
const (
	HistoryActionCreated = "created"
	HistoryActionUpdated = "updated"
	HistoryActionDeleted = "deleted"
)

// Filter narrows a ticket list query.
type Filter struct {
	Status  string
	Urgency string
	Source  string
}
