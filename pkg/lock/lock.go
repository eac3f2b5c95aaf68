// Package lock implements the distributed lock over the document store's
// distributed_locks table, grounded on the teacher's upsert-then-check
// idiom in pkg/incident/store.go's SetMergedInto, generalized into the
// two-step atomic acquire of spec §4.4: try to steal an expired lock, else
// attempt to insert a fresh one.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	apidb "github.com/ticketsync/ingestor/internal/db"
)

// ErrAlreadyHeld is returned by Acquire when the resource is locked by
// another, non-expired holder.
var ErrAlreadyHeld = errors.New("lock: resource already held")

// ErrNotHeld is returned by Release/Refresh when the caller does not
// currently hold the lock it is trying to act on.
var ErrNotHeld = errors.New("lock: not held by this owner")

// Status describes the current state of a named resource's lock.
type Status struct {
	ResourceID string    `json:"resource_id"`
	Held       bool      `json:"held"`
	OwnerID    string    `json:"owner_id,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Service is the distributed-lock store, backed by Postgres.
type Service struct {
	db         apidb.DBTX
	defaultTTL time.Duration
}

// New builds a lock Service with the given default TTL (spec default: 60s).
func New(db apidb.DBTX, defaultTTL time.Duration) *Service {
	return &Service{db: db, defaultTTL: defaultTTL}
}

// Acquire attempts to atomically claim resourceID for ownerID. It first
// tries to steal any lock row that has already expired; if none exists it
// attempts a fresh insert. A live, non-expired lock held by a different
// owner causes ErrAlreadyHeld.
func (s *Service) Acquire(ctx context.Context, resourceID, ownerID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	// Step 1: steal an expired lock, if one exists for this resource.
	tag, err := s.db.Exec(ctx, `
		UPDATE distributed_locks
		SET owner_id = $2, acquired_at = $3, expires_at = $4
		WHERE resource_id = $1 AND expires_at < $3
	`, resourceID, ownerID, now, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Step 2: no expired row to steal — try to insert fresh. A conflict
	// here means a live lock is already held by someone else.
	_, err = s.db.Exec(ctx, `
		INSERT INTO distributed_locks (resource_id, owner_id, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resource_id) DO NOTHING
	`, resourceID, ownerID, now, expiresAt)
	if err != nil {
		return err
	}

	// Confirm we actually own it now — ON CONFLICT DO NOTHING means the
	// insert may have silently lost the race to a concurrent holder.
	var gotOwner string
	row := s.db.QueryRow(ctx, `SELECT owner_id FROM distributed_locks WHERE resource_id = $1`, resourceID)
	if err := row.Scan(&gotOwner); err != nil {
		return err
	}
	if gotOwner != ownerID {
		return ErrAlreadyHeld
	}
	return nil
}

// Release drops the lock on resourceID if, and only if, it is currently
// held by ownerID.
func (s *Service) Release(ctx context.Context, resourceID, ownerID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM distributed_locks WHERE resource_id = $1 AND owner_id = $2
	`, resourceID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotHeld
	}
	return nil
}

// Refresh extends the expiry of a lock already held by ownerID.
func (s *Service) Refresh(ctx context.Context, resourceID, ownerID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	tag, err := s.db.Exec(ctx, `
		UPDATE distributed_locks
		SET expires_at = $3
		WHERE resource_id = $1 AND owner_id = $2
	`, resourceID, ownerID, now.Add(ttl))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotHeld
	}
	return nil
}

// GetLockStatus reports whether resourceID is currently locked.
func (s *Service) GetLockStatus(ctx context.Context, resourceID string) (Status, error) {
	var ownerID string
	var expiresAt time.Time

	row := s.db.QueryRow(ctx, `
		SELECT owner_id, expires_at FROM distributed_locks WHERE resource_id = $1
	`, resourceID)
	err := row.Scan(&ownerID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Status{ResourceID: resourceID, Held: false}, nil
	}
	if err != nil {
		return Status{}, err
	}

	held := time.Now().Before(expiresAt)
	return Status{
		ResourceID: resourceID,
		Held:       held,
		OwnerID:    ownerID,
		ExpiresAt:  expiresAt,
	}, nil
}

// CleanupExpiredLocks deletes every lock row whose expiry has passed,
// returning the number removed. Intended to be run periodically by the
// worker-mode janitor loop.
func (s *Service) CleanupExpiredLocks(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM distributed_locks WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
