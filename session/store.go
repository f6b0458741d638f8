// Package session tracks the lifetime of conversational sessions: the opaque
// execution handle allocated by the capability plus the audit metadata the
// dispatch layer maintains (creation time, last activity, completed message
// count). Handle and metadata are created and deleted together; the store
// never holds one without the other.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"datar/core"
	"datar/logging"
)

// ErrUnknownSession is returned when an operation references a session id not
// present in the store.
var ErrUnknownSession = errors.New("unknown session id")

// CreationError wraps a capability failure during context allocation. No
// partial state remains in the store when it is returned.
type CreationError struct {
	SessionID string
	Err       error
}

// Error implements the error interface for CreationError.
func (e *CreationError) Error() string {
	return fmt.Sprintf("session %s: context allocation failed: %v", e.SessionID, e.Err)
}

// Unwrap exposes the underlying capability error.
func (e *CreationError) Unwrap() error { return e.Err }

// Metadata is the audit record kept per session. CreatedAt is fixed at
// creation; LastActivityAt is non-decreasing; MessageCount increments only on
// completed dispatches.
type Metadata struct {
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity"`
	MessageCount   int       `json:"message_count"`
}

// Entry pairs a session id with a metadata snapshot for listing.
type Entry struct {
	SessionID string `json:"session_id"`
	Metadata
}

// Message is one turn of retrievable conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Options configures a Store.
type Options struct {
	// UserID is attached to every execution context allocated by the store.
	UserID string
	// MaxSessions bounds the store; creating a session beyond the bound
	// evicts the least recently active one. 0 disables the bound.
	MaxSessions int
	// IdleTTL evicts sessions whose last activity is older than the TTL.
	// Swept opportunistically on store mutation. 0 disables expiry.
	IdleTTL time.Duration
	// Logger receives store lifecycle events.
	Logger logging.Logger
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Store is a bounded in-memory session store. All public methods are safe for
// concurrent use: a single mutex serializes map mutations so two concurrent
// first-messages to the same new session id observe exactly one handle.
type Store struct {
	capability core.Capability
	userID     string
	maxEntries int
	idleTTL    time.Duration
	logger     logging.Logger
	clock      func() time.Time

	mu       sync.Mutex
	handles  map[string]core.Handle
	metadata map[string]*Metadata
}

// NewStore constructs a Store allocating execution contexts from capability.
func NewStore(capability core.Capability, optFns ...func(o *Options)) *Store {
	opts := Options{
		UserID:      "default_user",
		MaxSessions: 1000,
		Logger:      logging.NoOpLogger{},
		Clock:       time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{
		capability: capability,
		userID:     opts.UserID,
		maxEntries: opts.MaxSessions,
		idleTTL:    opts.IdleTTL,
		logger:     opts.Logger,
		clock:      opts.Clock,
		handles:    make(map[string]core.Handle),
		metadata:   make(map[string]*Metadata),
	}
}

// GetOrCreate returns the handle for sessionID, stamping last activity. A
// session id not yet present is created atomically: the capability allocates
// a fresh context and handle + metadata are recorded together, or a
// CreationError is returned and the store is untouched.
//
// Context allocation runs under the store mutex. That serializes creation
// across all sessions, which keeps the no-divergent-handles invariant trivial;
// allocation is a local operation for the in-process capability.
func (s *Store) GetOrCreate(ctx context.Context, sessionID string) (core.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.sweepLocked(now)

	if h, ok := s.handles[sessionID]; ok {
		s.metadata[sessionID].LastActivityAt = now
		return h, nil
	}

	h, err := s.capability.NewContext(ctx, s.userID)
	if err != nil {
		return nil, &CreationError{SessionID: sessionID, Err: err}
	}

	s.evictLocked()

	s.handles[sessionID] = h
	s.metadata[sessionID] = &Metadata{CreatedAt: now, LastActivityAt: now}
	s.logger.Info("session created", "session_id", sessionID, "handle_id", h.ID())

	return h, nil
}

// RecordCompletedMessage increments the message count and stamps last
// activity. Callers invoke it only after a dispatch reached completion.
func (s *Store) RecordCompletedMessage(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	md, ok := s.metadata[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	md.MessageCount++
	md.LastActivityAt = s.clock()
	return nil
}

// Metadata returns a snapshot of the session's metadata.
func (s *Store) Metadata(sessionID string) (Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	md, ok := s.metadata[sessionID]
	if !ok {
		return Metadata{}, false
	}
	return *md, true
}

// List returns a snapshot of all sessions ordered by creation time (id as
// tiebreaker). Each entry is a copy; concurrent mutation never produces a
// torn read.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.metadata))
	for id, md := range s.metadata {
		entries = append(entries, Entry{SessionID: id, Metadata: *md})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].SessionID < entries[j].SessionID
	})
	return entries
}

// Delete removes handle and metadata together, reporting whether the session
// existed. Deleting an absent session is not an error.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(sessionID)
}

// History returns the conversational turns recorded by the capability for the
// session. Unknown sessions and capability retrieval failures both degrade to
// an empty slice: the listing surface stays available even when history is
// not.
func (s *Store) History(ctx context.Context, sessionID string) []Message {
	s.mu.Lock()
	h, ok := s.handles[sessionID]
	s.mu.Unlock()

	if !ok {
		return []Message{}
	}

	events, err := s.capability.History(ctx, h)
	if err != nil {
		s.logger.Warn("history retrieval failed, returning empty history",
			"session_id", sessionID, "error", err)
		return []Message{}
	}

	messages := make([]Message, 0, len(events))
	for _, ev := range events {
		if ev.Content == nil || ev.Partial {
			continue
		}
		text := ev.Text()
		if text == "" {
			continue
		}
		messages = append(messages, Message{
			Role:      ev.Content.Role,
			Content:   text,
			Timestamp: ev.Timestamp,
		})
	}
	return messages
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Store) deleteLocked(sessionID string) bool {
	_, ok := s.handles[sessionID]
	delete(s.handles, sessionID)
	delete(s.metadata, sessionID)
	return ok
}

// evictLocked makes room for one new session when the bound is reached by
// removing the least recently active entry.
func (s *Store) evictLocked() {
	if s.maxEntries <= 0 || len(s.handles) < s.maxEntries {
		return
	}

	var victim string
	var oldest time.Time
	for id, md := range s.metadata {
		if victim == "" || md.LastActivityAt.Before(oldest) {
			victim = id
			oldest = md.LastActivityAt
		}
	}
	if victim != "" {
		s.deleteLocked(victim)
		s.logger.Info("session evicted", "session_id", victim, "idle_since", oldest)
	}
}

// sweepLocked drops sessions idle beyond the TTL.
func (s *Store) sweepLocked(now time.Time) {
	if s.idleTTL <= 0 {
		return
	}
	cutoff := now.Add(-s.idleTTL)
	for id, md := range s.metadata {
		if md.LastActivityAt.Before(cutoff) {
			s.deleteLocked(id)
			s.logger.Info("session expired", "session_id", id, "last_activity", md.LastActivityAt)
		}
	}
}
