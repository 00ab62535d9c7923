package domain

import "errors"

var (
	// ErrInvalidQuiz is returned when a session is created from an unpublished
	// quiz or a quiz without questions.
	ErrInvalidQuiz = errors.New("quiz is not runnable")
	// ErrSessionClosed is returned for any mutation against an ended session.
	ErrSessionClosed = errors.New("session has ended")
	// ErrInvalidTransition is returned for a lifecycle operation that the
	// session's current state does not allow.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrDuplicateParticipant is returned when a user id joins a session twice.
	ErrDuplicateParticipant = errors.New("participant already joined")
	// ErrUnknownSession is returned when no session matches the given id or code.
	ErrUnknownSession = errors.New("unknown session")
	// ErrStaleQuestion is returned for answers targeting a question that is no
	// longer (or not yet) the current one.
	ErrStaleQuestion = errors.New("question is not current")
	// ErrAlreadyAnswered is returned on a second submission for the same
	// (participant, question) pair; the first recorded answer stands.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrCodeTaken signals a join-code collision during session registration.
	ErrCodeTaken = errors.New("join code already in use")

	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
)
