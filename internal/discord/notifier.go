package discord

import (
	"context"
	"log/slog"

	"github.com/digitalgenesis/supportbridge/internal/identity"
	"github.com/digitalgenesis/supportbridge/internal/notify"
)

// Notifier posts join/leave markers into the identity's thread, resolving
// the thread on demand so a marker can land even when the visitor's first
// action was joining rather than sending.
type Notifier struct {
	logger    *slog.Logger
	directory *Directory
}

func NewNotifier(log *slog.Logger, directory *Directory) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		logger:    log.With(slog.String("component", "notifier")),
		directory: directory,
	}
}

func (n *Notifier) NotifyJoin(ctx context.Context, id identity.Identity) error {
	return n.post(ctx, id, notify.JoinMarker(id))
}

func (n *Notifier) NotifyLeave(ctx context.Context, id identity.Identity) error {
	return n.post(ctx, id, notify.LeaveMarker(id))
}

func (n *Notifier) post(ctx context.Context, id identity.Identity, marker string) error {
	thread, _, err := n.directory.ResolveThread(ctx, id)
	if err != nil {
		return err
	}
	return n.directory.SendText(ctx, thread.ID, marker)
}
