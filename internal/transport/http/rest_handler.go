package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// API is the non-streaming request/response surface. Clients that cannot hold
// a websocket use it as a fallback; reconnecting clients use GET session for
// the full state pull before resuming incremental updates.
type API struct {
	service *app.SessionService
}

func NewAPI(service *app.SessionService) *API {
	return &API{service: service}
}

// NewRouter mounts the REST surface and the websocket endpoint.
func NewRouter(service *app.SessionService) *mux.Router {
	api := NewAPI(service)
	ws := NewWSHandler(service)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.HandleFunc("/ws", ws.ServeWS)

	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/sessions", api.CreateSession).Methods(http.MethodPost)
	s.HandleFunc("/sessions/join", api.JoinByCode).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}", api.GetSession).Methods(http.MethodGet)
	s.HandleFunc("/sessions/{id}/start", api.StartSession).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}/advance", api.AdvanceSession).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}/end", api.EndSession).Methods(http.MethodPatch)
	s.HandleFunc("/sessions/{id}/answer", api.SubmitAnswer).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}/complete", api.CompleteSession).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}/results", api.SessionResults).Methods(http.MethodGet)
	s.HandleFunc("/sessions/{id}/stats", api.SessionStats).Methods(http.MethodGet)
	s.HandleFunc("/quizzes/{id}/stats", api.QuizStats).Methods(http.MethodGet)
	return r
}

func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !requireTeacher(w, r) {
		return
	}
	var req struct {
		QuizID string `json:"quizId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := a.service.CreateSession(r.Context(), req.QuizID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.service.Snapshot(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) JoinByCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := a.service.JoinByCode(req.Code, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) StartSession(w http.ResponseWriter, r *http.Request) {
	if !requireTeacher(w, r) {
		return
	}
	if err := a.service.StartQuiz(mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	if !requireTeacher(w, r) {
		return
	}
	if err := a.service.Advance(mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) EndSession(w http.ResponseWriter, r *http.Request) {
	if !requireTeacher(w, r) {
		return
	}
	sessionID := mux.Vars(r)["id"]
	if err := a.service.EndQuiz(sessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	snap, err := a.service.Snapshot(sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		QuestionID string  `json:"questionId"`
		OptionID   string  `json:"optionId"`
		TimeSpent  float64 `json:"timeSpent"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	result, err := a.service.SubmitAnswer(mux.Vars(r)["id"], userID, req.QuestionID, req.OptionID, req.TimeSpent)
	if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
		writeServiceError(w, err)
		return
	}
	// Duplicates are idempotent: the first recorded answer is reported again.
	writeJSON(w, http.StatusOK, result)
}

func (a *API) CompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := a.service.CompleteParticipant(mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) SessionResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.Results(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) SessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.SessionStats(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) QuizStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.QuizStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
