// ABOUTME: Dispatcher runs one inbound event through session load, routing, handler and commit
// ABOUTME: A failing handler leaves the stored session untouched

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Dispatcher is the conversation engine entry point for transports.
type Dispatcher struct {
	router   *Router
	sessions Sessions
	notifier Notifier
	logger   *slog.Logger
}

// NewDispatcher wires a routing table to session storage and a notifier.
func NewDispatcher(router *Router, sessions Sessions, notifier Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		router:   router,
		sessions: sessions,
		notifier: notifier,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch handles ev. Events for the same participant are processed one at a
// time; different participants proceed in parallel.
//
// Handler errors are logged and returned; the session is not committed so the
// participant stays in the state they were in before the event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	logger := d.logger.With(
		"event_id", uuid.NewString(),
		"kind", ev.Kind.String(),
		"chat", ev.ChatID,
		"user", ev.UserID,
	)

	key := ev.Key()
	sess, err := d.sessions.Acquire(ctx, key)
	if err != nil {
		logger.Error("failed to load session", "error", err)
		return fmt.Errorf("acquiring session %s: %w", key, err)
	}
	defer d.sessions.Release(key)

	from := sess.State
	handler, err := d.router.Resolve(from, ev)
	if errors.Is(err, ErrNoRoute) {
		logger.Debug("event ignored", "state", from.String())
		return nil
	}

	out := NewOutbox(d.notifier, ev.ChatID, logger)
	turn := &Turn{Event: ev, Session: sess, Out: out}

	next, err := handler(ctx, turn)
	if err != nil {
		logger.Error("handler failed", "state", from.String(), "error", err)
		return fmt.Errorf("handling %s in %s: %w", ev.Kind, from, err)
	}

	if !next.Active() {
		sess.ClearUser()
		out.Flush(ctx, sess)
	}
	sess.State = next

	if err := d.sessions.Commit(ctx, sess); err != nil {
		logger.Error("failed to save session", "state", next.String(), "error", err)
		return fmt.Errorf("committing session %s: %w", key, err)
	}

	if from != next {
		logger.Debug("state changed", "from", from.String(), "to", next.String())
	}
	return nil
}
