package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB holds the lock for heldBy until released. It answers the acquire,
// renew, and release statements the client issues.
type fakeDB struct {
	mu       sync.Mutex
	heldBy   string
	acquires int
	renews   int
	releases int
}

func (db *fakeDB) setHolder(token string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.heldBy = token
}

func (db *fakeDB) holder() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.heldBy
}

func (db *fakeDB) renewCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.renews
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if p, ok := dest[0].(*string); ok {
		*p = r.value
	}
	return nil
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := args[0].(string)
	token := args[1].(string)
	switch sql {
	case tryAcquireSQL:
		db.acquires++
		if db.heldBy == "" || db.heldBy == token {
			db.heldBy = token
			return fakeRow{value: key}
		}
		return fakeRow{err: pgx.ErrNoRows}
	case renewSQL:
		db.renews++
		if db.heldBy == token {
			return fakeRow{value: key}
		}
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if sql == releaseSQL && db.heldBy == args[1].(string) {
		db.releases++
		db.heldBy = ""
	}
	return pgconn.CommandTag{}, nil
}

func TestWithLease(t *testing.T) {
	db := &fakeDB{}
	client := New(db)

	ran := false
	err := client.WithLease(context.Background(), "load:prog-proj", Options{TTL: time.Minute}, func(ctx context.Context) error {
		if ctx.Err() != nil {
			t.Fatal("lease context cancelled while held")
		}
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLease returned error: %v", err)
	}
	if !ran {
		t.Fatal("callback did not run")
	}
	if db.releases != 1 {
		t.Fatalf("lease not released, releases = %d", db.releases)
	}
	if db.holder() != "" {
		t.Fatal("lock row still present after release")
	}
}

func TestAcquire_BusyWithoutWait(t *testing.T) {
	db := &fakeDB{heldBy: "someone-else"}
	client := New(db)

	_, err := client.Acquire(context.Background(), "load:prog-proj", Options{TTL: time.Minute})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	db := &fakeDB{heldBy: "someone-else"}
	client := New(db)

	go func() {
		time.Sleep(20 * time.Millisecond)
		db.setHolder("")
	}()

	lease, err := client.Acquire(context.Background(), "load:prog-proj", Options{
		TTL:          time.Minute,
		Wait:         true,
		WaitInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer lease.Release(context.Background())

	if db.acquires < 2 {
		t.Fatalf("expected at least one retry, got %d attempts", db.acquires)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	client := New(&fakeDB{})
	if _, err := client.Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestLease_RenewalKeepsContextAlive(t *testing.T) {
	db := &fakeDB{}
	client := New(db)

	lease, err := client.Acquire(context.Background(), "load:prog-proj", Options{
		TTL:        40 * time.Millisecond,
		RenewEvery: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer lease.Release(context.Background())

	time.Sleep(35 * time.Millisecond)
	if lease.Context.Err() != nil {
		t.Fatalf("lease context cancelled despite successful renewals: %v", context.Cause(lease.Context))
	}
	if db.renewCount() == 0 {
		t.Fatal("expected background renewals")
	}
}

func TestLease_LostCancelsContext(t *testing.T) {
	db := &fakeDB{}
	client := New(db)

	lease, err := client.Acquire(context.Background(), "load:prog-proj", Options{
		TTL:        40 * time.Millisecond,
		RenewEvery: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer lease.Release(context.Background())

	// Another holder stole the row; the next renewal must fail and cancel.
	db.setHolder("thief")

	deadline := time.After(200 * time.Millisecond)
	for lease.Context.Err() == nil {
		select {
		case <-deadline:
			t.Fatal("lease context not cancelled after losing the lock")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !errors.Is(context.Cause(lease.Context), ErrLost) {
		t.Fatalf("expected ErrLost cause, got %v", context.Cause(lease.Context))
	}
}
