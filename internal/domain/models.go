package domain

import "time"

// SessionState is the lifecycle position of a quiz session.
type SessionState string

const (
	// SessionCreated means the join code exists but no question is live yet.
	SessionCreated SessionState = "created"
	// SessionActive means a question is live and answers are accepted.
	SessionActive SessionState = "active"
	// SessionEnded is terminal; the session no longer accepts mutations.
	SessionEnded SessionState = "ended"
)

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Options         []Option `json:"options"`
	CorrectOptionID string   `json:"correctOptionId"`
	Points          int      `json:"points"`              // defaults to 1 if zero
	TimeLimitSec    int      `json:"timeLimit,omitempty"` // 0 means no deadline
}

// Quiz is immutable content supplied by the quiz-content collaborator.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt,omitempty"`
	IsPublished bool       `json:"isPublished"`
}

// ParticipantAnswer is one participant's recorded answer to one question.
// At most one exists per (participant, question) pair.
type ParticipantAnswer struct {
	QuestionID       string    `json:"questionId"`
	SelectedOptionID string    `json:"selectedOptionId"`
	Correct          bool      `json:"correct"`
	TimeSpent        float64   `json:"timeSpent"` // seconds, client-reported, informational only
	SubmittedAt      time.Time `json:"submittedAt"`
}

// AnswerResult summarizes the outcome of a submission for the submitter.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// ParticipantSummary is a snapshot-friendly view of a participant.
type ParticipantSummary struct {
	UserID    string    `json:"userId"`
	JoinedAt  time.Time `json:"joinedAt"`
	Completed bool      `json:"completed"`
	Score     int       `json:"score"`
	Answered  int       `json:"answered"`
}

// SessionSnapshot is a read-only copy of session state handed out by value.
type SessionSnapshot struct {
	ID              string               `json:"id"`
	QuizID          string               `json:"quizId"`
	Code            string               `json:"code"`
	State           SessionState         `json:"state"`
	CreatedAt       time.Time            `json:"createdAt"`
	EndedAt         *time.Time           `json:"endedAt,omitempty"`
	CurrentQuestion int                  `json:"currentQuestion"`
	TotalQuestions  int                  `json:"totalQuestions"`
	Participants    []ParticipantSummary `json:"participants"`
}

// QuizResult is the immutable final outcome for one participant.
type QuizResult struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	CompletedAt    time.Time `json:"completedAt"`
}

// QuestionStat aggregates answers to a single question.
type QuestionStat struct {
	QuestionID        string  `json:"questionId"`
	QuestionText      string  `json:"questionText"`
	TotalAnswers      int     `json:"totalAnswers"`
	CorrectPercentage float64 `json:"correctPercentage"`
	AverageTimeSpent  float64 `json:"averageTimeSpent"`
	// OptionDistribution maps option id to the share of answers selecting it,
	// in percent. All zero when the question has no answers yet.
	OptionDistribution map[string]float64 `json:"optionDistribution"`
}

// QuizStats is a derived snapshot of session statistics.
type QuizStats struct {
	AverageScore      float64        `json:"averageScore"`
	HighestScore      int            `json:"highestScore"`
	LowestScore       int            `json:"lowestScore"`
	TotalParticipants int            `json:"totalParticipants"`
	QuestionsStats    []QuestionStat `json:"questionsStats"`
}
