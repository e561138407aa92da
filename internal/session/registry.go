package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/digitalgenesis/supportbridge/internal/identity"
)

// ErrNoActiveSession is returned when leave/end targets an unknown identity.
var ErrNoActiveSession = errors.New("no active session for this email")

// Notifier posts join/leave markers into the conversation's platform thread.
type Notifier interface {
	NotifyJoin(ctx context.Context, id identity.Identity) error
	NotifyLeave(ctx context.Context, id identity.Identity) error
}

// Registry tracks which identities currently have a live widget session.
// It is the only owner of session state; the eviction sweep is the only
// automatic-leave path for clients that vanish without calling leave.
type Registry struct {
	logger    *slog.Logger
	notifier  Notifier
	threshold time.Duration

	mu       sync.Mutex
	lastSeen map[identity.Identity]time.Time

	now func() time.Time
}

func NewRegistry(log *slog.Logger, notifier Notifier, threshold time.Duration) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		logger:    log.With(slog.String("component", "sessions")),
		notifier:  notifier,
		threshold: threshold,
		lastSeen:  make(map[identity.Identity]time.Time),
		now:       time.Now,
	}
}

// Join activates a session and reports whether this call created it. The
// session is marked active before the notification goes out, so a reconnect
// racing with the outbound call cannot produce a second join marker. The
// notification itself is best effort.
func (r *Registry) Join(ctx context.Context, id identity.Identity) bool {
	r.mu.Lock()
	_, active := r.lastSeen[id]
	r.lastSeen[id] = r.now()
	r.mu.Unlock()

	if active {
		r.logger.Debug("session refreshed", slog.String("email", id.String()))
		return false
	}

	r.logger.Info("session started", slog.String("email", id.String()))
	if err := r.notifier.NotifyJoin(ctx, id); err != nil {
		r.logger.Error("join notification failed", slog.String("email", id.String()), slog.Any("error", err))
	}
	return true
}

// Heartbeat refreshes an active session and reports whether one existed.
// Unknown identities are accepted as a no-op: a heartbeat must never
// implicitly join, or it would race the sweep into duplicate join markers.
func (r *Registry) Heartbeat(id identity.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, active := r.lastSeen[id]; !active {
		return false
	}
	r.lastSeen[id] = r.now()
	return true
}

// Touch refreshes the timestamp of an active session, if any. Used by
// send-message so an open conversation is never swept mid-exchange.
func (r *Registry) Touch(id identity.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, active := r.lastSeen[id]; active {
		r.lastSeen[id] = r.now()
	}
}

// Leave ends a session and posts the leave marker. Returns
// ErrNoActiveSession when the identity has no session; callers treat that
// as a client error, not a crash.
func (r *Registry) Leave(ctx context.Context, id identity.Identity) error {
	r.mu.Lock()
	_, active := r.lastSeen[id]
	delete(r.lastSeen, id)
	r.mu.Unlock()

	if !active {
		return ErrNoActiveSession
	}

	r.logger.Info("session ended", slog.String("email", id.String()))
	if err := r.notifier.NotifyLeave(ctx, id); err != nil {
		r.logger.Error("leave notification failed", slog.String("email", id.String()), slog.Any("error", err))
	}
	return nil
}

// Sweep evicts every session idle past the inactivity threshold and posts a
// leave marker for each. Notification failures are logged and swallowed;
// the session is gone either way, so one bad platform call can never wedge
// the sweep. Returns how many sessions were evicted.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	var expired []identity.Identity
	for id, seen := range r.lastSeen {
		// Re-check under the lock so a session refreshed after the tick
		// started is not evicted on stale data.
		if now.Sub(seen) > r.threshold {
			delete(r.lastSeen, id)
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.logger.Info("session evicted", slog.String("email", id.String()))
		if err := r.notifier.NotifyLeave(ctx, id); err != nil {
			r.logger.Error("eviction leave notification failed", slog.String("email", id.String()), slog.Any("error", err))
		}
	}
	return len(expired)
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lastSeen)
}
