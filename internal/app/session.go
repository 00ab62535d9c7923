package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/clock"
	"livequiz-service/internal/domain"
)

// Session owns one live quiz run. Every mutation goes through its mutex, so a
// session has exactly one writer at a time; different sessions share nothing.
// Broadcast events are emitted while the lock is held, which pins their order
// to the order the mutations were serialized in.
type Session struct {
	id              string
	code            string
	quiz            domain.Quiz
	clock           clock.Clock
	defaultLimitSec int
	onEnded         func(s *Session, results []domain.QuizResult)

	mu           sync.Mutex
	state        domain.SessionState
	createdAt    time.Time
	endedAt      time.Time
	current      int
	order        []string
	participants map[string]*participant
	results      map[string]domain.QuizResult
	stats        *statsAccumulator
	subscribers  map[chan domain.Event]struct{}
	timer        clock.Timer
}

type participant struct {
	userID    string
	joinedAt  time.Time
	completed bool
	score     int
	answers   map[string]domain.ParticipantAnswer
}

// NewSession builds a session in the Created state. onEnded runs exactly once,
// after the transition to Ended, outside the session lock.
func NewSession(id, code string, quiz domain.Quiz, clk clock.Clock, defaultLimitSec int, onEnded func(*Session, []domain.QuizResult)) *Session {
	return &Session{
		id:              id,
		code:            code,
		quiz:            quiz,
		clock:           clk,
		defaultLimitSec: defaultLimitSec,
		onEnded:         onEnded,
		state:           domain.SessionCreated,
		createdAt:       clk.Now(),
		current:         -1,
		participants:    make(map[string]*participant),
		results:         make(map[string]domain.QuizResult),
		stats:           newStatsAccumulator(),
		subscribers:     make(map[chan domain.Event]struct{}),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Code() string   { return s.code }
func (s *Session) QuizID() string { return s.quiz.ID }

func (s *Session) join(userID string) (domain.ParticipantSummary, domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionEnded {
		return domain.ParticipantSummary{}, domain.SessionSnapshot{}, domain.ErrSessionClosed
	}
	if _, ok := s.participants[userID]; ok {
		return domain.ParticipantSummary{}, domain.SessionSnapshot{}, domain.ErrDuplicateParticipant
	}

	p := &participant{
		userID:   userID,
		joinedAt: s.clock.Now(),
		answers:  make(map[string]domain.ParticipantAnswer),
	}
	s.participants[userID] = p
	s.order = append(s.order, userID)

	summary := summarize(p)
	s.emitLocked(domain.Event{Type: domain.EventNewParticipant, Payload: summary})
	snap := s.snapshotLocked()
	s.emitLocked(domain.Event{Type: domain.EventSessionUpdate, Payload: snap})
	return summary, snap, nil
}

func (s *Session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.SessionEnded:
		return domain.ErrSessionClosed
	case domain.SessionActive:
		return domain.ErrInvalidTransition
	}

	s.state = domain.SessionActive
	s.current = 0
	s.scheduleLocked()

	s.emitLocked(domain.Event{Type: domain.EventQuizStarted, Payload: domain.LifecycleChange{SessionID: s.id}})
	s.emitLocked(domain.Event{Type: domain.EventQuestionChanged, Payload: s.questionChangeLocked()})
	s.emitLocked(domain.Event{Type: domain.EventSessionUpdate, Payload: s.snapshotLocked()})
	return nil
}

func (s *Session) submitAnswer(userID, questionID, optionID string, timeSpent float64) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.SessionEnded:
		return domain.AnswerResult{}, domain.ErrSessionClosed
	case domain.SessionCreated:
		return domain.AnswerResult{}, domain.ErrInvalidTransition
	}

	p, ok := s.participants[userID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}

	idx := questionIndex(s.quiz, questionID)
	if idx < 0 {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	if idx != s.current {
		return domain.AnswerResult{}, domain.ErrStaleQuestion
	}
	q := s.quiz.Questions[idx]

	if prev, ok := p.answers[questionID]; ok {
		// Duplicate submissions never re-score; report what was recorded.
		awarded := 0
		if prev.Correct {
			_, awarded = ScoreAnswer(q, prev.SelectedOptionID)
		}
		return domain.AnswerResult{
			QuestionID: questionID,
			Correct:    prev.Correct,
			Awarded:    awarded,
			TotalScore: p.score,
		}, domain.ErrAlreadyAnswered
	}

	if !hasOption(q, optionID) {
		return domain.AnswerResult{}, domain.ErrOptionNotFound
	}

	correct, points := ScoreAnswer(q, optionID)
	awarded := 0
	if correct {
		awarded = points
		p.score += points
	}

	ans := domain.ParticipantAnswer{
		QuestionID:       questionID,
		SelectedOptionID: optionID,
		Correct:          correct,
		TimeSpent:        timeSpent,
		SubmittedAt:      s.clock.Now(),
	}
	p.answers[questionID] = ans
	s.stats.foldAnswer(ans)

	s.emitLocked(domain.Event{Type: domain.EventNewAnswer, Payload: domain.AnswerActivity{
		SessionID:     s.id,
		UserID:        userID,
		QuestionID:    questionID,
		TimeSpent:     timeSpent,
		AnsweredCount: s.answeredCountLocked(questionID),
		Participants:  len(s.participants),
	}})

	return domain.AnswerResult{
		QuestionID: questionID,
		Correct:    correct,
		Awarded:    awarded,
		TotalScore: p.score,
	}, nil
}

// advance moves to the next question or ends the session (teacher-triggered).
func (s *Session) advance() error { return s.progress(-1, false) }

// end forces the transition to Ended regardless of remaining questions.
func (s *Session) end() error { return s.progress(-1, true) }

// advanceFrom is the timer entry point. A request for a question index that is
// no longer current is a no-op, so a timer racing a manual advance (or an
// already-ended session) can never double-advance.
func (s *Session) advanceFrom(expected int) {
	_ = s.progress(expected, false)
}

func (s *Session) progress(expected int, force bool) error {
	var finished []domain.QuizResult

	s.mu.Lock()
	switch s.state {
	case domain.SessionEnded:
		s.mu.Unlock()
		return domain.ErrSessionClosed
	case domain.SessionCreated:
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if expected >= 0 && expected != s.current {
		s.mu.Unlock()
		return nil
	}

	s.stopTimerLocked()
	if force || s.current+1 >= len(s.quiz.Questions) {
		finished = s.endLocked()
	} else {
		s.current++
		s.scheduleLocked()
		s.emitLocked(domain.Event{Type: domain.EventQuestionChanged, Payload: s.questionChangeLocked()})
		s.emitLocked(domain.Event{Type: domain.EventSessionUpdate, Payload: s.snapshotLocked()})
	}
	s.mu.Unlock()

	if finished != nil && s.onEnded != nil {
		s.onEnded(s, finished)
	}
	return nil
}

func (s *Session) endLocked() []domain.QuizResult {
	s.state = domain.SessionEnded
	s.endedAt = s.clock.Now()
	for _, userID := range s.order {
		s.completeLocked(userID)
	}

	s.emitLocked(domain.Event{Type: domain.EventQuizEnded, Payload: domain.LifecycleChange{SessionID: s.id}})
	s.emitLocked(domain.Event{Type: domain.EventSessionUpdate, Payload: s.snapshotLocked()})

	results := make([]domain.QuizResult, 0, len(s.order))
	for _, userID := range s.order {
		results = append(results, s.results[userID])
	}
	return results
}

func (s *Session) complete(userID string) (domain.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionCreated {
		return domain.QuizResult{}, domain.ErrInvalidTransition
	}
	// Completing twice (or after the session ended) returns the recorded
	// result; the flag flip happens at most once.
	return s.completeLocked(userID)
}

func (s *Session) completeLocked(userID string) (domain.QuizResult, error) {
	p, ok := s.participants[userID]
	if !ok {
		return domain.QuizResult{}, domain.ErrParticipantNotFound
	}
	if p.completed {
		return s.results[userID], nil
	}
	p.completed = true

	correct := 0
	for _, ans := range p.answers {
		if ans.Correct {
			correct++
		}
	}
	res := domain.QuizResult{
		ID:             uuid.NewString(),
		SessionID:      s.id,
		QuizID:         s.quiz.ID,
		UserID:         userID,
		Score:          p.score,
		TotalQuestions: len(s.quiz.Questions),
		CorrectAnswers: correct,
		CompletedAt:    s.clock.Now(),
	}
	s.results[userID] = res
	s.stats.foldScore(p.score)
	return res, nil
}

func (s *Session) snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	parts := make([]domain.ParticipantSummary, 0, len(s.order))
	for _, userID := range s.order {
		parts = append(parts, summarize(s.participants[userID]))
	}
	snap := domain.SessionSnapshot{
		ID:              s.id,
		QuizID:          s.quiz.ID,
		Code:            s.code,
		State:           s.state,
		CreatedAt:       s.createdAt,
		CurrentQuestion: s.current,
		TotalQuestions:  len(s.quiz.Questions),
		Participants:    parts,
	}
	if !s.endedAt.IsZero() {
		endedAt := s.endedAt
		snap.EndedAt = &endedAt
	}
	return snap
}

func (s *Session) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := domain.Event{Type: domain.EventSessionUpdate, Payload: s.snapshotLocked()}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) emitLocked(ev domain.Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// A slow subscriber loses its oldest event rather than blocking
			// the session's serialization point.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) statsSnapshot() domain.QuizStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.snapshot(s.quiz)
}

func (s *Session) statsCopy() *statsAccumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.clone()
}

func (s *Session) resultList() []domain.QuizResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QuizResult, 0, len(s.results))
	for _, userID := range s.order {
		if res, ok := s.results[userID]; ok {
			out = append(out, res)
		}
	}
	return out
}

func (s *Session) scheduleLocked() {
	q := s.quiz.Questions[s.current]
	limit := s.limitFor(q)
	if limit <= 0 {
		// Untimed question; it advances only on explicit teacher action.
		return
	}
	idx := s.current
	s.timer = s.clock.AfterFunc(time.Duration(limit)*time.Second, func() {
		s.advanceFrom(idx)
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) limitFor(q domain.Question) int {
	if q.TimeLimitSec > 0 {
		return q.TimeLimitSec
	}
	return s.defaultLimitSec
}

func (s *Session) answeredCountLocked(questionID string) int {
	n := 0
	for _, p := range s.participants {
		if _, ok := p.answers[questionID]; ok {
			n++
		}
	}
	return n
}

func (s *Session) questionChangeLocked() domain.QuestionChange {
	q := s.quiz.Questions[s.current]
	return domain.QuestionChange{
		SessionID:      s.id,
		QuestionIndex:  s.current,
		TotalQuestions: len(s.quiz.Questions),
		TimeLimitSec:   s.limitFor(q),
	}
}

func summarize(p *participant) domain.ParticipantSummary {
	return domain.ParticipantSummary{
		UserID:    p.userID,
		JoinedAt:  p.joinedAt,
		Completed: p.completed,
		Score:     p.score,
		Answered:  len(p.answers),
	}
}
