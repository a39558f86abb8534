package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/draftlens/backend/internal/domain"
)

const defaultMaxSessions = 1000

// MemoryStore keeps draft sessions in process. Sessions are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	sessions    map[string][]byte
	order       []string
	maxSessions int
	mutex       sync.RWMutex
}

// NewMemoryStore creates a store holding at most maxSessions drafts; the
// least recently saved draft is dropped first
func NewMemoryStore(maxSessions int) *MemoryStore {
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &MemoryStore{
		sessions:    make(map[string][]byte),
		maxSessions: maxSessions,
	}
}

// Get returns a copy of the session
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.DraftSession, error) {
	s.mutex.RLock()
	data, ok := s.sessions[id]
	s.mutex.RUnlock()

	if !ok {
		return nil, domain.ErrDraftNotFound
	}

	var session domain.DraftSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &session, nil
}

// Save stores a copy of the session, replacing any previous version
func (s *MemoryStore) Save(ctx context.Context, session *domain.DraftSession) error {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return domain.ErrInvalidRequest
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", session.ID, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.touch(session.ID)
	s.sessions[session.ID] = data

	for len(s.order) > s.maxSessions {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.sessions, oldest)
	}
	return nil
}

// Len returns the number of stored sessions
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// touch moves id to the most recent position. Caller holds the write lock.
func (s *MemoryStore) touch(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, id)
}
