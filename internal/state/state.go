// Package state provides the short-lived per-user conversation context store.
//
// The store disambiguates follow-up replies: a bare "yes" only means
// "generate my strategy" while an AwaitingStrategyConfirmation entry is
// pending for that user. Entries are process-local and evaporate after a TTL.
package state

import (
	"log/slog"
	"sync"
	"time"
)

// Context marks what kind of follow-up reply is pending for a user.
type Context string

const (
	// ContextNone means no follow-up is pending. Absence of an entry is
	// equivalent to ContextNone.
	ContextNone Context = "none"
	// ContextAwaitingStrategyConfirmation means the user was offered a
	// personalized strategy and a yes/no reply is expected.
	ContextAwaitingStrategyConfirmation Context = "awaiting_strategy_confirmation"
)

// DefaultTTL is how long a conversation context stays readable without being
// refreshed.
const DefaultTTL = 10 * time.Minute

// Entry is one user's pending conversation context.
type Entry struct {
	UserID    int64
	Context   Context
	Payload   any
	CreatedAt time.Time
}

// Store holds at most one Entry per user. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]*Entry
}

// NewStore creates a Store whose entries expire after ttl. A non-positive ttl
// falls back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		entries: make(map[int64]*Entry),
	}
}

// Get returns the user's current context and payload. Users without an entry
// get ContextNone and a nil payload.
func (s *Store) Get(userID int64) (Context, any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return ContextNone, nil
	}
	return e.Context, e.Payload
}

// Set overwrites the user's context, stamps CreatedAt, and arms a deferred
// expiry check. The check fires at the TTL and deletes the entry only if its
// CreatedAt is still the one stamped here, so a Set that lands before the
// timer fires supersedes the pending expiry instead of being deleted by it.
func (s *Store) Set(userID int64, ctx Context, payload any) {
	now := time.Now()

	s.mu.Lock()
	s.entries[userID] = &Entry{
		UserID:    userID,
		Context:   ctx,
		Payload:   payload,
		CreatedAt: now,
	}
	s.mu.Unlock()

	slog.Debug("conversation state set", "userID", userID, "context", ctx, "hasPayload", payload != nil)
	time.AfterFunc(s.ttl, func() { s.expire(userID, now) })
}

// Clear removes the user's entry, if any.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	_, existed := s.entries[userID]
	delete(s.entries, userID)
	s.mu.Unlock()

	if existed {
		slog.Debug("conversation state cleared", "userID", userID)
	}
}

// expire deletes the entry stamped with createdAt once its age has reached
// the TTL. Timestamp comparison, not mere presence, guards against deleting
// a newer entry stored under the same user.
func (s *Store) expire(userID int64, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok || !e.CreatedAt.Equal(createdAt) {
		return
	}
	if time.Since(e.CreatedAt) < s.ttl {
		return
	}
	delete(s.entries, userID)
	slog.Debug("conversation state expired", "userID", userID, "context", e.Context, "age", time.Since(e.CreatedAt))
}
