package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"livequiz-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// errorCode maps the error taxonomy to short machine-readable identifiers for
// clients; messages stay human-readable.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuiz):
		return "invalid-quiz"
	case errors.Is(err, domain.ErrSessionClosed):
		return "session-closed"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid-transition"
	case errors.Is(err, domain.ErrDuplicateParticipant):
		return "duplicate-participant"
	case errors.Is(err, domain.ErrUnknownSession):
		return "unknown-session"
	case errors.Is(err, domain.ErrStaleQuestion):
		return "stale-question"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "already-answered"
	case errors.Is(err, domain.ErrQuizNotFound):
		return "quiz-not-found"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return "question-not-found"
	case errors.Is(err, domain.ErrOptionNotFound):
		return "option-not-found"
	case errors.Is(err, domain.ErrParticipantNotFound):
		return "participant-not-found"
	default:
		return ""
	}
}

// writeServiceError maps each taxonomy entry to a status without leaking
// internal state; unexpected failures collapse to a generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "request failed"

	switch {
	case errors.Is(err, domain.ErrUnknownSession),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrSessionClosed):
		status, message = http.StatusGone, err.Error()
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicateParticipant),
		errors.Is(err, domain.ErrStaleQuestion),
		errors.Is(err, domain.ErrAlreadyAnswered):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidQuiz):
		status, message = http.StatusUnprocessableEntity, err.Error()
	}

	writeJSON(w, status, errorResponse{Error: message, Code: errorCode(err)})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// identity reads the caller's id and role as supplied by the identity
// collaborator in front of this service.
func identity(r *http.Request) (userID, role string) {
	userID = r.Header.Get("X-User-ID")
	role = r.Header.Get("X-User-Role")
	if role == "" {
		role = "student"
	}
	return userID, role
}

func requireTeacher(w http.ResponseWriter, r *http.Request) bool {
	if _, role := identity(r); role != "teacher" {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "teacher role required"})
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, _ := identity(r)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return "", false
	}
	return userID, true
}
