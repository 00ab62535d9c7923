package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionStore.
// Notes:
//   - Session objects (and their broadcast fan-out) stay in-process; Redis
//     holds the join-code registry and a liveness marker per session, so two
//     instances cannot hand out the same code.
//   - For true distribution you'd pair this with a pub/sub projector that
//     relays events across instances.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu     sync.RWMutex
	byID   map[string]*app.Session
	byCode map[string]string
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
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
	// SETNX so a code claimed by another instance also counts as a collision.
	claimed, err := s.client.SetNX(context.Background(), s.codeKey(session.Code()), session.ID(), s.ttl).Result()
	if err == nil && !claimed {
		return domain.ErrCodeTaken
	}

	s.byID[session.ID()] = session
	s.byCode[session.Code()] = session.ID()
	_ = s.client.Set(context.Background(), s.liveKey(session.ID()), "1", s.ttl).Err()
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
	if id, ok := s.byCode[code]; ok {
		_ = s.client.Del(context.Background(), s.liveKey(id)).Err()
	}
	delete(s.byCode, code)
	_ = s.client.Del(context.Background(), s.codeKey(code)).Err()
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

func (s *SessionStore) codeKey(code string) string {
	return "session:code:" + code
}

func (s *SessionStore) liveKey(id string) string {
	return "session:live:" + id
}
