package lock

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB is a minimal in-memory stand-in for apidb.DBTX, enough to drive
// Service's SQL-shaped calls without a real Postgres connection. It is not
// a general-purpose SQL engine — each query is matched by the statement
// shape the Service issues.
type fakeDB struct {
	resourceID string
	ownerID    string
	expiresAt  time.Time
	exists     bool
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case containsUpdateSteal(sql):
		resourceID, ownerID, _, expiresAt := args[0].(string), args[1].(string), args[2].(time.Time), args[3].(time.Time)
		if f.exists && f.resourceID == resourceID && f.expiresAt.Before(args[2].(time.Time)) {
			f.ownerID = ownerID
			f.expiresAt = expiresAt
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
		return pgconn.NewCommandTag("UPDATE 0"), nil
	case containsInsert(sql):
		resourceID, ownerID, _, expiresAt := args[0].(string), args[1].(string), args[2].(time.Time), args[3].(time.Time)
		if !f.exists {
			f.exists = true
			f.resourceID = resourceID
			f.ownerID = ownerID
			f.expiresAt = expiresAt
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case containsDeleteOwned(sql):
		resourceID, ownerID := args[0].(string), args[1].(string)
		if f.exists && f.resourceID == resourceID && f.ownerID == ownerID {
			f.exists = false
			return pgconn.NewCommandTag("DELETE 1"), nil
		}
		return pgconn.NewCommandTag("DELETE 0"), nil
	case containsUpdateRefresh(sql):
		resourceID, ownerID, expiresAt := args[0].(string), args[1].(string), args[2].(time.Time)
		if f.exists && f.resourceID == resourceID && f.ownerID == ownerID {
			f.expiresAt = expiresAt
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
		return pgconn.NewCommandTag("UPDATE 0"), nil
	case containsDeleteExpired(sql):
		if f.exists && f.expiresAt.Before(args[0].(time.Time)) {
			f.exists = false
			return pgconn.NewCommandTag("DELETE 1"), nil
		}
		return pgconn.NewCommandTag("DELETE 0"), nil
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &fakeRow{f: f}
}

type fakeRow struct{ f *fakeDB }

func (r *fakeRow) Scan(dest ...any) error {
	if !r.f.exists {
		return pgx.ErrNoRows
	}
	switch len(dest) {
	case 1:
		*(dest[0].(*string)) = r.f.ownerID
	case 2:
		*(dest[0].(*string)) = r.f.ownerID
		*(dest[1].(*time.Time)) = r.f.expiresAt
	}
	return nil
}

func containsUpdateSteal(sql string) bool    { return has(sql, "UPDATE distributed_locks") && has(sql, "expires_at < $3") }
func containsInsert(sql string) bool         { return has(sql, "INSERT INTO distributed_locks") }
func containsDeleteOwned(sql string) bool    { return has(sql, "DELETE FROM distributed_locks") && has(sql, "owner_id = $2") }
func containsUpdateRefresh(sql string) bool  { return has(sql, "UPDATE distributed_locks") && has(sql, "expires_at = $3") }
func containsDeleteExpired(sql string) bool  { return has(sql, "DELETE FROM distributed_locks") && !has(sql, "owner_id") }

func has(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestAcquireFreshResource(t *testing.T) {
	db := &fakeDB{}
	svc := New(db, time.Minute)

	if err := svc.Acquire(context.Background(), "tenant-a:ingest", "worker-1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.ownerID != "worker-1" {
		t.Fatalf("expected worker-1 to own the lock, got %q", db.ownerID)
	}
}

func TestAcquireRejectsLiveLockFromOtherOwner(t *testing.T) {
	db := &fakeDB{exists: true, resourceID: "tenant-a:ingest", ownerID: "worker-1", expiresAt: time.Now().Add(time.Hour)}
	svc := New(db, time.Minute)

	err := svc.Acquire(context.Background(), "tenant-a:ingest", "worker-2", 0)
	if err != ErrAlreadyHeld {
		t.Fatalf("expected ErrAlreadyHeld, got %v", err)
	}
}

func TestAcquireStealsExpiredLock(t *testing.T) {
	db := &fakeDB{exists: true, resourceID: "tenant-a:ingest", ownerID: "worker-1", expiresAt: time.Now().Add(-time.Minute)}
	svc := New(db, time.Minute)

	if err := svc.Acquire(context.Background(), "tenant-a:ingest", "worker-2", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.ownerID != "worker-2" {
		t.Fatalf("expected worker-2 to steal the lock, got %q", db.ownerID)
	}
}

func TestReleaseRequiresOwnership(t *testing.T) {
	db := &fakeDB{exists: true, resourceID: "tenant-a:ingest", ownerID: "worker-1", expiresAt: time.Now().Add(time.Hour)}
	svc := New(db, time.Minute)

	if err := svc.Release(context.Background(), "tenant-a:ingest", "worker-2"); err != ErrNotHeld {
		t.Fatalf("expected ErrNotHeld, got %v", err)
	}
	if err := svc.Release(context.Background(), "tenant-a:ingest", "worker-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetLockStatusUnheld(t *testing.T) {
	db := &fakeDB{}
	svc := New(db, time.Minute)

	st, err := svc.GetLockStatus(context.Background(), "tenant-a:ingest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Held {
		t.Fatal("expected unheld status for nonexistent resource")
	}
}
