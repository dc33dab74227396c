// ABOUTME: Session manager that loads, locks and persists conversation sessions
// ABOUTME: Implements conversation.Sessions over a store.SessionStore with a TTL cache in front

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/store"
)

// Options tune session lifetime.
type Options struct {
	// TTL is how long an idle session survives. Zero keeps sessions forever.
	TTL time.Duration
	// MaxEntries bounds the in-memory cache; the store still holds everything.
	MaxEntries int
	// Notifier deletes the tracked messages of sessions removed by Sweep.
	// Without one, expired sessions that still track messages are kept until
	// their participant's next event cleans them up.
	Notifier conversation.Notifier
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{
	TTL:        24 * time.Hour,
	MaxEntries: 10000,
}

// keyLock is a context-aware mutex shared by every event for one key.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// Manager implements conversation.Sessions.
type Manager struct {
	store    store.SessionStore
	cache    *Cache
	ttl      time.Duration
	notifier conversation.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[conversation.Key]*keyLock
}

// NewManager creates a session manager. A nil logger uses slog.Default().
func NewManager(st store.SessionStore, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultOptions.MaxEntries
	}
	return &Manager{
		store:    st,
		cache:    NewCache(opts.TTL, opts.MaxEntries),
		ttl:      opts.TTL,
		notifier: opts.Notifier,
		logger:   logger.With("component", "sessions"),
		now:      time.Now,
		locks:    make(map[conversation.Key]*keyLock),
	}
}

// Acquire waits for exclusive use of key and returns its session, creating an
// empty one when none is stored or the stored one has expired.
func (m *Manager) Acquire(ctx context.Context, key conversation.Key) (*conversation.Session, error) {
	if err := m.lock(ctx, key); err != nil {
		return nil, fmt.Errorf("waiting for session lock: %w", err)
	}

	s, err := m.load(ctx, key)
	if err != nil {
		m.unlock(key)
		return nil, err
	}
	return s, nil
}

// Commit persists s, or deletes it when its conversation has ended.
func (m *Manager) Commit(ctx context.Context, s *conversation.Session) error {
	id := s.Key.String()

	if !s.State.Active() {
		m.cache.Delete(id)
		if err := m.store.DeleteSessionState(ctx, id); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		return nil
	}

	s.UpdatedAt = m.now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.SaveSessionState(ctx, id, data); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	m.cache.Put(id, data)
	return nil
}

// Release gives up the lock taken by Acquire.
func (m *Manager) Release(key conversation.Key) {
	m.unlock(key)
}

// Sweep removes persisted sessions idle for longer than the TTL, deleting the
// messages they still track first. Sessions whose messages cannot be deleted
// for lack of a notifier are left in place. Returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	ids, err := m.store.ListStaleSessions(ctx, m.now().Add(-m.ttl))
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}

	removed := 0
	for _, id := range ids {
		key, ok := parseKey(id)
		if !ok {
			m.logger.Warn("skipping malformed session key", "session", id)
			continue
		}
		done, err := m.sweepOne(ctx, key)
		if err != nil {
			return removed, fmt.Errorf("sweeping session %s: %w", id, err)
		}
		if done {
			removed++
		}
	}
	return removed, nil
}

// sweepOne removes key if it is still expired once its lock is held.
func (m *Manager) sweepOne(ctx context.Context, key conversation.Key) (bool, error) {
	if err := m.lock(ctx, key); err != nil {
		return false, err
	}
	defer m.unlock(key)

	s, err := m.load(ctx, key)
	if err != nil {
		return false, err
	}
	// Saved again since the listing
	if s.State.Active() {
		return false, nil
	}
	if len(s.Chat.PageMessages) > 0 {
		if m.notifier == nil {
			return false, nil
		}
		conversation.NewOutbox(m.notifier, key.ChatID, m.logger).Flush(ctx, s)
	}

	m.cache.Delete(key.String())
	if err := m.store.DeleteSessionState(ctx, key.String()); err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return true, nil
}

// Close stops the cache's background cleanup.
func (m *Manager) Close() {
	m.cache.Close()
}

func (m *Manager) load(ctx context.Context, key conversation.Key) (*conversation.Session, error) {
	id := key.String()

	data, ok := m.cache.Get(id)
	if !ok {
		var err error
		data, err = m.store.GetSessionState(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return conversation.NewSession(key), nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
	}

	var s conversation.Session
	if err := json.Unmarshal(data, &s); err != nil {
		// A snapshot we cannot read is treated as no session at all
		m.logger.Warn("discarding unreadable session", "session", id, "error", err)
		return conversation.NewSession(key), nil
	}
	s.Key = key

	if m.ttl > 0 && !s.UpdatedAt.IsZero() && m.now().Sub(s.UpdatedAt) > m.ttl {
		m.logger.Debug("session expired", "session", id, "state", s.State.String())
		m.cache.Delete(id)
		// Tracked messages survive so the next handler or the sweep can delete them
		expired := conversation.NewSession(key)
		expired.Chat = s.Chat
		return expired, nil
	}
	return &s, nil
}

func (m *Manager) lock(ctx context.Context, key conversation.Key) error {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		m.dropRefLocked(key, l)
		m.mu.Unlock()
		return ctx.Err()
	}
}

func (m *Manager) unlock(key conversation.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		return
	}
	<-l.ch
	m.dropRefLocked(key, l)
}

// dropRefLocked must be called with mu held.
func (m *Manager) dropRefLocked(key conversation.Key, l *keyLock) {
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// parseKey reverses conversation.Key.String.
func parseKey(id string) (conversation.Key, bool) {
	chat, user, ok := strings.Cut(id, ":")
	if !ok || chat == "" || user == "" {
		return conversation.Key{}, false
	}
	return conversation.Key{ChatID: chat, UserID: user}, true
}

var _ conversation.Sessions = (*Manager)(nil)
