package ticket

import "context"

// SyncAction is the outcome of synchronising one external ticket against
// the store.
type SyncAction string

const (
	SyncCreated   SyncAction = "created"
	SyncUpdated   SyncAction = "updated"
	SyncUnchanged SyncAction = "unchanged"
)

// SyncResult is the verdict of SyncTicket.
type SyncResult struct {
	Action   SyncAction
	TicketID string
	Changes  []string
}

// SyncTicket compares an external ticket against the stored copy (if any)
// and reports whether it represents a new ticket, a changed one, or a
// no-op. It does not itself mutate the store beyond writing a history
// record for a detected update — the caller (the ingestion coordinator)
// performs the actual upsert.
func (s *Store) SyncTicket(ctx context.Context, tenantID string, ext External) (SyncResult, error) {
	existing, err := s.getRawByExternalID(ctx, tenantID, ext.ExternalID)
	if err != nil {
		return SyncResult{}, err
	}

	if existing == nil {
		return SyncResult{Action: SyncCreated}, nil
	}

	if !ext.UpdatedAt.IsZero() && !existing.UpdatedAt.IsZero() {
		if !ext.UpdatedAt.UTC().After(existing.UpdatedAt.UTC()) {
			return SyncResult{Action: SyncUnchanged, TicketID: existing.ID}, nil
		}
	}

	changes := diffFields(*existing, ext)
	if len(changes) == 0 {
		return SyncResult{Action: SyncUnchanged, TicketID: existing.ID}, nil
	}

	changeMap := buildChangeMap(*existing, ext, changes)

	if err := s.RecordHistory(ctx, HistoryEntry{
		TicketID: existing.ID,
		TenantID: tenantID,
		Action:   HistoryActionUpdated,
		Changes:  changeMap,
	}); err != nil {
		return SyncResult{}, err
	}

	return SyncResult{Action: SyncUpdated, TicketID: existing.ID, Changes: changes}, nil
}

// diffFields compares the {subject, message, status} triple between the
// stored ticket and the incoming external one. A field is skipped only
// when both sides are empty.
func diffFields(existing Ticket, ext External) []string {
	var changed []string
	if !(existing.Subject == "" && ext.Subject == "") && existing.Subject != ext.Subject {
		changed = append(changed, "subject")
	}
	if !(existing.Message == "" && ext.Message == "") && existing.Message != ext.Message {
		changed = append(changed, "message")
	}
	if !(existing.Status == "" && ext.Status == "") && existing.Status != ext.Status {
		changed = append(changed, "status")
	}
	return changed
}

func fieldValue(ext External, field string) string {
	switch field {
	case "subject":
		return ext.Subject
	case "message":
		return ext.Message
	case "status":
		return ext.Status
	default:
		return ""
	}
}

func existingFieldValue(existing Ticket, field string) string {
	switch field {
	case "subject":
		return existing.Subject
	case "message":
		return existing.Message
	case "status":
		return existing.Status
	default:
		return ""
	}
}

// buildChangeMap builds the TicketHistoryEntry.changes payload: field →
// {old, new}, per changed field.
func buildChangeMap(existing Ticket, ext External, changed []string) map[string]any {
	changeMap := make(map[string]any, len(changed))
	for _, field := range changed {
		changeMap[field] = map[string]any{
			"old": existingFieldValue(existing, field),
			"new": fieldValue(ext, field),
		}
	}
	return changeMap
}
