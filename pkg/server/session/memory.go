package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in a process-local map. Suitable for
// development and single-instance deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	m          map[string]*Session
	maxHistory int
}

// NewMemoryStore creates an empty store capping history at maxHistory
// messages per session.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &MemoryStore{
		m:          make(map[string]*Session),
		maxHistory: maxHistory,
	}
}

func (s *MemoryStore) Sync(_ context.Context, id string, in SyncInput) (*Session, bool, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[id]
	created := false
	if !ok {
		if id == "" {
			id = uuid.NewString()
		}
		sess = &Session{ID: id, UserIP: in.UserIP, CreatedAt: now}
		s.m[id] = sess
		created = true
	}

	sess.Code = in.Code
	sess.ProblemID = in.ProblemID
	sess.ProblemTitle = in.ProblemTitle
	if in.Language != "" {
		sess.Language = in.Language
	}
	sess.HintLevel = in.HintLevel
	sess.LastUpdated = now

	out := cloneSession(sess)
	return out, created, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) AddMessage(_ context.Context, id, role, content string) (*Session, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	if !ok {
		return nil, ErrNotFound
	}

	sess.History = append(sess.History, Message{Role: role, Content: content, Timestamp: now})
	if len(sess.History) > s.maxHistory {
		sess.History = sess.History[len(sess.History)-s.maxHistory:]
	}
	sess.MessageCount++
	sess.LastUpdated = now
	return cloneSession(sess), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return ErrNotFound
	}
	delete(s.m, id)
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.m {
		if sess.LastUpdated.Before(cutoff) {
			delete(s.m, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{ActiveSessions: len(s.m)}
	for _, sess := range s.m {
		st.TotalMessages += sess.MessageCount
	}
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneSession(in *Session) *Session {
	out := *in
	out.History = append([]Message(nil), in.History...)
	return &out
}
