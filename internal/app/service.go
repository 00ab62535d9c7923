package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/clock"
	"livequiz-service/internal/domain"
)

// SessionStore registers live sessions by id and join code. Join codes are
// unique among active sessions only; ReleaseCode frees a code once its
// session has ended.
type SessionStore interface {
	Register(s *Session) error // domain.ErrCodeTaken on join-code collision
	Get(id string) (*Session, bool)
	GetByCode(code string) (*Session, bool)
	ReleaseCode(code string)
	ByQuiz(quizID string) []*Session
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultArchive persists final results beyond the session's lifetime.
type ResultArchive interface {
	SaveResults(ctx context.Context, sessionID string, results []domain.QuizResult) error
	ListResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error)
}

// SessionService contains the live-session use cases. All state-changing calls
// for a given session id serialize on that session's lock; different sessions
// proceed fully in parallel.
type SessionService struct {
	store        SessionStore
	quizzes      QuizRepository
	archive      ResultArchive
	clock        clock.Clock
	codeLength   int
	questionTime int
}

// Options tune session behavior; zero values fall back to defaults.
type Options struct {
	Clock      clock.Clock
	Archive    ResultArchive
	CodeLength int
	// QuestionTime is the fallback per-question limit in seconds for questions
	// that do not define their own; 0 leaves such questions untimed.
	QuestionTime int
}

func NewSessionService(store SessionStore, quizzes QuizRepository, opts Options) *SessionService {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Archive == nil {
		opts.Archive = noopArchive{}
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	return &SessionService{
		store:        store,
		quizzes:      quizzes,
		archive:      opts.Archive,
		clock:        opts.Clock,
		codeLength:   opts.CodeLength,
		questionTime: opts.QuestionTime,
	}
}

const maxCodeAttempts = 10

// CreateSession loads the quiz, validates it is runnable, and registers a new
// session under a fresh join code (regenerated on collision).
func (s *SessionService) CreateSession(ctx context.Context, quizID string) (domain.SessionSnapshot, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := validateQuiz(quiz); err != nil {
		return domain.SessionSnapshot{}, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		session := NewSession(uuid.NewString(), generateCode(s.codeLength), quiz, s.clock, s.questionTime, s.sessionEnded)
		err := s.store.Register(session)
		if err == nil {
			return session.snapshot(), nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return domain.SessionSnapshot{}, err
		}
	}
	return domain.SessionSnapshot{}, domain.ErrCodeTaken
}

// Snapshot returns a read-only copy of the session's current state.
func (s *SessionService) Snapshot(sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrUnknownSession
	}
	return session.snapshot(), nil
}

// Join adds a participant to a session by id.
func (s *SessionService) Join(sessionID, userID string) (domain.SessionSnapshot, error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrUnknownSession
	}
	_, snap, err := session.join(userID)
	return snap, err
}

// JoinByCode resolves a join code to its active session and joins it.
func (s *SessionService) JoinByCode(code, userID string) (domain.SessionSnapshot, error) {
	session, ok := s.store.GetByCode(strings.ToUpper(strings.TrimSpace(code)))
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrUnknownSession
	}
	_, snap, err := session.join(userID)
	return snap, err
}

// StartQuiz transitions Created -> Active and arms the first question timer.
func (s *SessionService) StartQuiz(sessionID string) error {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.ErrUnknownSession
	}
	return session.start()
}

// SubmitAnswer scores and records one participant's answer to the current
// question. On domain.ErrAlreadyAnswered the returned result describes the
// previously recorded answer.
func (s *SessionService) SubmitAnswer(sessionID, userID, questionID, optionID string, timeSpent float64) (domain.AnswerResult, error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrUnknownSession
	}
	return session.submitAnswer(userID, questionID, optionID, timeSpent)
}

// Advance moves the session to the next question, or ends it when the current
// question is the last one.
func (s *SessionService) Advance(sessionID string) error {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.ErrUnknownSession
	}
	return session.advance()
}

// EndQuiz forces the session to Ended and finalizes every participant's result.
func (s *SessionService) EndQuiz(sessionID string) error {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.ErrUnknownSession
	}
	return session.end()
}

// CompleteParticipant finalizes one participant's result; calling it again
// returns the same result.
func (s *SessionService) CompleteParticipant(sessionID, userID string) (domain.QuizResult, error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.QuizResult{}, domain.ErrUnknownSession
	}
	return session.complete(userID)
}

// Subscribe attaches a new subscriber to the session's broadcast fan-out. The
// first delivered event is a session-update snapshot, so a reconnecting client
// resyncs without event replay. The caller must invoke cancel to avoid leaks.
func (s *SessionService) Subscribe(sessionID string) (<-chan domain.Event, func(), error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrUnknownSession
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Results lists final results for a session, falling back to the archive once
// the session is no longer held in memory.
func (s *SessionService) Results(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	if session, ok := s.store.Get(sessionID); ok {
		return session.resultList(), nil
	}
	archived, err := s.archive.ListResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(archived) == 0 {
		return nil, domain.ErrUnknownSession
	}
	return archived, nil
}

// SessionStats snapshots live statistics for one session.
func (s *SessionService) SessionStats(sessionID string) (domain.QuizStats, error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return domain.QuizStats{}, domain.ErrUnknownSession
	}
	return session.statsSnapshot(), nil
}

// QuizStats aggregates statistics across every known session of a quiz.
func (s *SessionService) QuizStats(ctx context.Context, quizID string) (domain.QuizStats, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizStats{}, err
	}
	merged := newStatsAccumulator()
	for _, session := range s.store.ByQuiz(quizID) {
		merged.merge(session.statsCopy())
	}
	return merged.snapshot(quiz), nil
}

// sessionEnded releases the join code for reuse and archives final results.
// Archiving is best-effort; the in-memory results stay queryable either way.
func (s *SessionService) sessionEnded(session *Session, results []domain.QuizResult) {
	s.store.ReleaseCode(session.Code())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.archive.SaveResults(ctx, session.ID(), results); err != nil {
		slog.Error("archiving session results failed", "session", session.ID(), "error", err)
	}
}

func validateQuiz(quiz domain.Quiz) error {
	if !quiz.IsPublished || len(quiz.Questions) == 0 {
		return domain.ErrInvalidQuiz
	}
	for _, q := range quiz.Questions {
		if !hasOption(q, q.CorrectOptionID) {
			return domain.ErrInvalidQuiz
		}
	}
	return nil
}

func generateCode(length int) string {
	buf := make([]byte, (length+1)/2)
	_, _ = rand.Read(buf)
	code := strings.ToUpper(hex.EncodeToString(buf))
	return code[:length]
}

type noopArchive struct{}

func (noopArchive) SaveResults(context.Context, string, []domain.QuizResult) error {
	return nil
}

func (noopArchive) ListResults(context.Context, string) ([]domain.QuizResult, error) {
	return nil, nil
}
