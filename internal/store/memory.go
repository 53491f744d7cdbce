package store

import (
	"sync"

	"github.com/ideclab/asistente-mga/internal/models"
)

// InMemoryStore keeps all state in process memory. Used in tests and when no
// DSN is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]models.Session
	uploads   map[string][]models.UploadRecord
	documents map[string][]models.DocumentRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[string]models.Session),
		uploads:   make(map[string][]models.UploadRecord),
		documents: make(map[string][]models.DocumentRecord),
	}
}

func (s *InMemoryStore) SaveSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Deep-copy the response map so callers can keep mutating theirs.
	copied := sess
	copied.Responses = make(map[string]models.Answer, len(sess.Responses))
	for k, v := range sess.Responses {
		copied.Responses[k] = v
	}
	s.sessions[sess.ID] = copied
	return nil
}

func (s *InMemoryStore) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := sess
	out.Responses = make(map[string]models.Answer, len(sess.Responses))
	for k, v := range sess.Responses {
		out.Responses[k] = v
	}
	return &out, nil
}

func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) AddUpload(u models.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[u.SessionID] = append(s.uploads[u.SessionID], u)
	return nil
}

func (s *InMemoryStore) GetUploads(sessionID string) ([]models.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.UploadRecord(nil), s.uploads[sessionID]...), nil
}

func (s *InMemoryStore) AddDocument(d models.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[d.SessionID] = append(s.documents[d.SessionID], d)
	return nil
}

func (s *InMemoryStore) GetDocuments(sessionID string) ([]models.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DocumentRecord(nil), s.documents[sessionID]...), nil
}

func (s *InMemoryStore) Close() error { return nil }
