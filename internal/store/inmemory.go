package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	sessions map[string]SessionRecord
	messages map[string][]Message // keyed by session id
	order    map[string][]string  // profile id -> memory ids in insertion order
	byID     map[string]*MemoryRecord
	audit    []AuditEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]Profile),
		sessions: make(map[string]SessionRecord),
		messages: make(map[string][]Message),
		order:    make(map[string][]string),
		byID:     make(map[string]*MemoryRecord),
	}
}

func (s *InMemoryStore) CreateProfile(_ context.Context, p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) GetProfile(_ context.Context, id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) CreateSession(_ context.Context, rec SessionRecord) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = "active"
	}
	s.sessions[rec.ID] = rec
	return rec, nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id string) (SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	if !ok {
		return SessionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) UpdateSessionPrivacy(_ context.Context, id, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	rec.PrivacyMode = mode
	s.sessions[id] = rec
	return nil
}

func (s *InMemoryStore) EndSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = "ended"
	rec.EndedAt = time.Now().UTC()
	s.sessions[id] = rec
	return nil
}

func (s *InMemoryStore) SaveMessage(_ context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messages[m.SessionID] = append(s.messages[m.SessionID], m)
	return m, nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.messages[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Message, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) SaveMemory(_ context.Context, r MemoryRecord) (MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.MentionCount < 1 {
		r.MentionCount = 1
	}
	stored := r
	s.byID[r.ID] = &stored
	s.order[r.ProfileID] = append(s.order[r.ProfileID], r.ID)
	return r, nil
}

func (s *InMemoryStore) GetMemory(_ context.Context, id string) (MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return MemoryRecord{}, ErrNotFound
	}
	return *rec, nil
}

func (s *InMemoryStore) ListMemories(_ context.Context, profileID string) ([]MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MemoryRecord, 0, len(s.order[profileID]))
	for _, id := range s.order[profileID] {
		out = append(out, *s.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SearchMemories(_ context.Context, profileID, substring string) ([]MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(substring)
	var out []MemoryRecord
	for _, id := range s.order[profileID] {
		r := *s.byID[id]
		if strings.Contains(strings.ToLower(r.Content), needle) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) IncrementMention(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.MentionCount++
	return nil
}

func (s *InMemoryStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.audit = append(s.audit, e)
	return nil
}

// AuditEntries returns a snapshot of the audit log, oldest first.
func (s *InMemoryStore) AuditEntries() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *InMemoryStore) Close() error { return nil }
