package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/digitalgenesis/supportbridge/internal/identity"
)

type fakeNotifier struct {
	mu     sync.Mutex
	joins  []identity.Identity
	leaves []identity.Identity
	err    error
}

func (n *fakeNotifier) NotifyJoin(_ context.Context, id identity.Identity) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joins = append(n.joins, id)
	return n.err
}

func (n *fakeNotifier) NotifyLeave(_ context.Context, id identity.Identity) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leaves = append(n.leaves, id)
	return n.err
}

func newTestRegistry(t *testing.T, threshold time.Duration) (*Registry, *fakeNotifier) {
	t.Helper()
	notifier := &fakeNotifier{}
	return NewRegistry(nil, notifier, threshold), notifier
}

func TestJoinIsIdempotent(t *testing.T) {
	t.Parallel()

	reg, notifier := newTestRegistry(t, time.Minute)
	id := identity.Identity("u@x.com")

	if !reg.Join(context.Background(), id) {
		t.Fatalf("first join should report a new session")
	}
	if reg.Join(context.Background(), id) {
		t.Fatalf("second join should only refresh")
	}

	if len(notifier.joins) != 1 {
		t.Fatalf("expected exactly one join notification, got %d", len(notifier.joins))
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one active session, got %d", reg.Len())
	}
}

func TestHeartbeatUnknownIsNoOp(t *testing.T) {
	t.Parallel()

	reg, notifier := newTestRegistry(t, time.Minute)

	if reg.Heartbeat(identity.Identity("ghost@x.com")) {
		t.Fatalf("heartbeat for unknown identity should report no session")
	}
	if reg.Len() != 0 {
		t.Fatalf("heartbeat must not create a session, registry has %d", reg.Len())
	}
	if len(notifier.joins)+len(notifier.leaves) != 0 {
		t.Fatalf("heartbeat must not notify")
	}
}

func TestHeartbeatRefreshesActiveSession(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t, time.Minute)
	id := identity.Identity("u@x.com")

	now := time.Now()
	reg.now = func() time.Time { return now }
	reg.Join(context.Background(), id)

	// Age the session to the brink, then heartbeat at a later clock.
	now = now.Add(59 * time.Second)
	if !reg.Heartbeat(id) {
		t.Fatalf("heartbeat should find the session")
	}

	now = now.Add(59 * time.Second)
	if evicted := reg.Sweep(context.Background()); evicted != 0 {
		t.Fatalf("refreshed session must survive the sweep, evicted %d", evicted)
	}
}

func TestLeaveUnknownReturnsNoActiveSession(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t, time.Minute)
	err := reg.Leave(context.Background(), identity.Identity("ghost@x.com"))
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestLeaveEmitsSingleNotification(t *testing.T) {
	t.Parallel()

	reg, notifier := newTestRegistry(t, time.Minute)
	id := identity.Identity("u@x.com")

	reg.Join(context.Background(), id)
	if err := reg.Leave(context.Background(), id); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if err := reg.Leave(context.Background(), id); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("repeated leave should report no active session, got %v", err)
	}
	if len(notifier.leaves) != 1 {
		t.Fatalf("expected exactly one leave notification, got %d", len(notifier.leaves))
	}
}

func TestSweepEvictsStaleSessions(t *testing.T) {
	t.Parallel()

	reg, notifier := newTestRegistry(t, 30*time.Minute)
	id := identity.Identity("stale@x.com")

	now := time.Now()
	reg.now = func() time.Time { return now }
	reg.Join(context.Background(), id)

	now = now.Add(30*time.Minute + time.Second)
	if evicted := reg.Sweep(context.Background()); evicted != 1 {
		t.Fatalf("expected one eviction, got %d", evicted)
	}
	if reg.Len() != 0 {
		t.Fatalf("evicted session still in registry")
	}
	if len(notifier.leaves) != 1 {
		t.Fatalf("expected exactly one leave notification, got %d", len(notifier.leaves))
	}

	if evicted := reg.Sweep(context.Background()); evicted != 0 {
		t.Fatalf("second sweep must be empty, evicted %d", evicted)
	}
}

func TestSweepRemovesSessionWhenNotifierFails(t *testing.T) {
	t.Parallel()

	reg, notifier := newTestRegistry(t, time.Minute)
	id := identity.Identity("u@x.com")

	now := time.Now()
	reg.now = func() time.Time { return now }
	reg.Join(context.Background(), id)

	notifier.err = errors.New("platform down")
	now = now.Add(2 * time.Minute)
	if evicted := reg.Sweep(context.Background()); evicted != 1 {
		t.Fatalf("expected eviction despite notifier failure, got %d", evicted)
	}
	if reg.Len() != 0 {
		t.Fatalf("session must be removed even when the notification fails")
	}
}

func TestTouchDoesNotCreateSession(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t, time.Minute)
	reg.Touch(identity.Identity("ghost@x.com"))
	if reg.Len() != 0 {
		t.Fatalf("touch must not create sessions")
	}
}
