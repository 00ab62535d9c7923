package memory

import (
	"sync"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// SessionStore is the in-memory implementation of app.SessionStore. Sessions
// stay addressable by id after they end; only the join code is released.
type SessionStore struct {
	mu     sync.RWMutex
	byID   map[string]*app.Session
	byCode map[string]string // join code -> session id
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:   make(map[string]*app.Session),
		byCode: make(map[string]string),
	}
}

func (s *SessionStore) Register(session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byCode[session.Code()]; taken {
		return domain.ErrCodeTaken
	}
	s.byID[session.ID()] = session
	s.byCode[session.Code()] = session.ID()
	return nil
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[id]
	return session, ok
}

func (s *SessionStore) GetByCode(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	session, ok := s.byID[id]
	return session, ok
}

func (s *SessionStore) ReleaseCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byCode, code)
}

func (s *SessionStore) ByQuiz(quizID string) []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*app.Session
	for _, session := range s.byID {
		if session.QuizID() == quizID {
			out = append(out, session)
		}
	}
	return out
}
