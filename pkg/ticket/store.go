package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	apidb "github.com/ticketsync/ingestor/internal/db"
)

const ticketColumns = `id, tenant_id, external_id, subject, message, status, urgency, sentiment, requires_action, customer_id, source, created_at, updated_at, deleted_at`

// Store is the ticket persistence layer, backed by Postgres. Follows the
// teacher's Store{q, dbtx} shape (pkg/incident/store.go) minus the
// sqlc-generated query wrapper, since this lineage has no generated db
// package — hand-written SQL constants and Scan-based mapping instead.
type Store struct {
	db apidb.DBTX
}

// NewStore builds a ticket Store over the given database handle.
func NewStore(db apidb.DBTX) *Store {
	return &Store{db: db}
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(
		&t.ID, &t.TenantID, &t.ExternalID, &t.Subject, &t.Message, &t.Status,
		&t.Urgency, &t.Sentiment, &t.RequiresAction, &t.CustomerID, &t.Source,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	return t, err
}

func scanTicketRows(rows pgx.Rows) ([]Ticket, error) {
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByExternalID fetches a non-deleted ticket by (tenant_id, external_id).
func (s *Store) GetByExternalID(ctx context.Context, tenantID, externalID string) (*Ticket, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE tenant_id = $1 AND external_id = $2 AND deleted_at IS NULL
	`, tenantID, externalID)

	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// getRawByExternalID fetches a ticket regardless of soft-delete state, used
// internally by the synchroniser to decide created/updated/unchanged.
func (s *Store) getRawByExternalID(ctx context.Context, tenantID, externalID string) (*Ticket, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE tenant_id = $1 AND external_id = $2
	`, tenantID, externalID)

	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertResult reports whether an Upsert created a new row or modified an
// existing one.
type UpsertResult struct {
	Ticket  Ticket
	Created bool
}

// Upsert idempotently writes t, keyed by (tenant_id, external_id).
func (s *Store) Upsert(ctx context.Context, t Ticket) (UpsertResult, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO tickets (tenant_id, external_id, subject, message, status, urgency, sentiment, requires_action, customer_id, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (tenant_id, external_id) DO UPDATE SET
			subject = EXCLUDED.subject,
			message = EXCLUDED.message,
			status = EXCLUDED.status,
			urgency = EXCLUDED.urgency,
			sentiment = EXCLUDED.sentiment,
			requires_action = EXCLUDED.requires_action,
			customer_id = EXCLUDED.customer_id,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
		RETURNING `+ticketColumns+`, (xmax = 0) AS inserted
	`, t.TenantID, t.ExternalID, t.Subject, t.Message, t.Status, t.Urgency, t.Sentiment, t.RequiresAction, t.CustomerID, t.Source, t.UpdatedAt)

	var out Ticket
	var inserted bool
	err := row.Scan(
		&out.ID, &out.TenantID, &out.ExternalID, &out.Subject, &out.Message, &out.Status,
		&out.Urgency, &out.Sentiment, &out.RequiresAction, &out.CustomerID, &out.Source,
		&out.CreatedAt, &out.UpdatedAt, &out.DeletedAt, &inserted,
	)
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Ticket: out, Created: inserted}, nil
}

// ListFiltered returns a page of tenant-scoped, non-deleted tickets.
func (s *Store) ListFiltered(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]Ticket, error) {
	clauses, args := buildFilterClauses(tenantID, f)
	query := fmt.Sprintf(`
		SELECT %s FROM tickets
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, ticketColumns, strings.Join(clauses, " AND "), len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanTicketRows(rows)
}

// CountFiltered returns the total row count matching the same filter
// ListFiltered uses, for pagination totals.
func (s *Store) CountFiltered(ctx context.Context, tenantID string, f Filter) (int, error) {
	clauses, args := buildFilterClauses(tenantID, f)
	query := fmt.Sprintf(`SELECT count(*) FROM tickets WHERE %s`, strings.Join(clauses, " AND "))

	var count int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func buildFilterClauses(tenantID string, f Filter) ([]string, []any) {
	clauses := []string{"tenant_id = $1", "deleted_at IS NULL"}
	args := []any{tenantID}

	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Urgency != "" {
		args = append(args, f.Urgency)
		clauses = append(clauses, fmt.Sprintf("urgency = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		clauses = append(clauses, fmt.Sprintf("source = $%d", len(args)))
	}
	return clauses, args
}

// ListUrgent returns up to limit high-urgency tickets, newest first.
func (s *Store) ListUrgent(ctx context.Context, tenantID string, limit int) ([]Ticket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE tenant_id = $1 AND urgency = 'high' AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	return scanTicketRows(rows)
}

// DetectDeletedTickets returns the external_ids of tenant tickets absent
// from observedExternalIDs and not already soft-deleted. Callers must pass
// a complete enumeration; a partial one corrupts this step.
func (s *Store) DetectDeletedTickets(ctx context.Context, tenantID string, observedExternalIDs []string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT external_id FROM tickets
		WHERE tenant_id = $1 AND deleted_at IS NULL AND NOT (external_id = ANY($2))
	`, tenantID, observedExternalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}

// MarkDeleted soft-deletes the given external_ids for tenantID and records
// a "deleted" history entry per ticket. Returns the number affected.
func (s *Store) MarkDeleted(ctx context.Context, tenantID string, externalIDs []string) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}

	rows, err := s.db.Query(ctx, `
		UPDATE tickets SET deleted_at = $3
		WHERE tenant_id = $1 AND external_id = ANY($2) AND deleted_at IS NULL
		RETURNING id
	`, tenantID, externalIDs, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.RecordHistory(ctx, HistoryEntry{
			TicketID: id,
			TenantID: tenantID,
			Action:   HistoryActionDeleted,
		}); err != nil {
			return len(ids), err
		}
	}
	return len(ids), nil
}

// RecordHistory appends one change record.
func (s *Store) RecordHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ticket_history (ticket_id, tenant_id, action, changes, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.TicketID, entry.TenantID, entry.Action, entry.Changes, time.Now().UTC())
	return err
}

// ListHistory returns up to limit history entries for ticketID, newest first.
func (s *Store) ListHistory(ctx context.Context, tenantID, ticketID string, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ticket_id, tenant_id, action, changes, recorded_at FROM ticket_history
		WHERE tenant_id = $1 AND ticket_id = $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`, tenantID, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.TicketID, &e.TenantID, &e.Action, &e.Changes, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
