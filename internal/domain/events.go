package domain

// EventType names a broadcast event fanned out to session subscribers.
type EventType string

const (
	EventSessionUpdate   EventType = "session-update"
	EventNewParticipant  EventType = "new-participant"
	EventNewAnswer       EventType = "new-answer"
	EventQuizStarted     EventType = "quiz-started"
	EventQuestionChanged EventType = "question-changed"
	EventQuizEnded       EventType = "quiz-ended"
)

// Event is the envelope delivered to every subscriber of a session.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// LifecycleChange is the payload of quiz-started and quiz-ended events.
type LifecycleChange struct {
	SessionID string `json:"sessionId"`
}

// QuestionChange announces a new current question to all subscribers.
type QuestionChange struct {
	SessionID      string `json:"sessionId"`
	QuestionIndex  int    `json:"questionIndex"`
	TotalQuestions int    `json:"totalQuestions"`
	TimeLimitSec   int    `json:"timeLimit,omitempty"`
}

// AnswerActivity is the payload of new-answer events. It deliberately omits
// correctness so other participants cannot infer the right option from the
// live feed.
type AnswerActivity struct {
	SessionID     string  `json:"sessionId"`
	UserID        string  `json:"userId"`
	QuestionID    string  `json:"questionId"`
	TimeSpent     float64 `json:"timeSpent"`
	AnsweredCount int     `json:"answeredCount"`
	Participants  int     `json:"participants"`
}
