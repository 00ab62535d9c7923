package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livequiz-service/internal/app"
	"livequiz-service/internal/clock"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func fixtureQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Fixture quiz",
			CreatedBy:   "teacher-1",
			IsPublished: true,
			Questions: []domain.Question{
				{
					ID:              "q1",
					Text:            "first",
					Options:         []domain.Option{{ID: "o-a"}, {ID: "o-b"}},
					CorrectOptionID: "o-a",
					Points:          1,
				},
				{
					ID:              "q2",
					Text:            "second",
					Options:         []domain.Option{{ID: "o-a"}, {ID: "o-b"}},
					CorrectOptionID: "o-b",
					Points:          2,
				},
			},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.SessionService) {
	t.Helper()
	store := memory.NewSessionStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(fixtureQuizzes()), time.Minute)
	svc := app.NewSessionService(store, repo, app.Options{Clock: clock.NewManual(time.Unix(0, 0))})
	srv := httptest.NewServer(NewRouter(svc))
	t.Cleanup(srv.Close)
	return srv, svc
}

type call struct {
	method  string
	path    string
	userID  string
	role    string
	body    any
	decoded any
}

func do(t *testing.T, srv *httptest.Server, c call) *http.Response {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(c.method, srv.URL+c.path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	if c.role != "" {
		req.Header.Set("X-User-Role", c.role)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if c.decoded != nil {
		if err := json.NewDecoder(resp.Body).Decode(c.decoded); err != nil {
			t.Fatalf("%s %s: decode response: %v", c.method, c.path, err)
		}
	}
	return resp
}

func TestRESTSessionFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	var created domain.SessionSnapshot
	resp := do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions",
		userID: "teacher-1", role: "teacher",
		body: map[string]string{"quizId": "quiz-1"}, decoded: &created,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	if created.State != domain.SessionCreated || created.Code == "" {
		t.Fatalf("unexpected session: %+v", created)
	}

	var joined domain.SessionSnapshot
	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/join",
		userID: "alice",
		body:   map[string]string{"code": created.Code}, decoded: &joined,
	})
	if resp.StatusCode != http.StatusOK || joined.ID != created.ID {
		t.Fatalf("join by code: status %d snapshot %+v", resp.StatusCode, joined)
	}

	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/" + created.ID + "/start",
		userID: "teacher-1", role: "teacher",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("start: status %d", resp.StatusCode)
	}

	var answer domain.AnswerResult
	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/" + created.ID + "/answer",
		userID: "alice",
		body:   map[string]any{"questionId": "q1", "optionId": "o-a", "timeSpent": 2.5},
		decoded: &answer,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: status %d", resp.StatusCode)
	}
	if !answer.Correct || answer.TotalScore != 1 {
		t.Fatalf("answer result: %+v", answer)
	}

	// A duplicate submission reports the recorded answer with 200.
	var dup domain.AnswerResult
	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/" + created.ID + "/answer",
		userID: "alice",
		body:   map[string]any{"questionId": "q1", "optionId": "o-b", "timeSpent": 9},
		decoded: &dup,
	})
	if resp.StatusCode != http.StatusOK || dup != answer {
		t.Fatalf("duplicate answer: status %d result %+v", resp.StatusCode, dup)
	}

	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/" + created.ID + "/advance",
		userID: "teacher-1", role: "teacher",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("advance: status %d", resp.StatusCode)
	}

	// Answering the previous question now conflicts.
	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/" + created.ID + "/answer",
		userID: "bob2",
		body:   map[string]any{"questionId": "q1", "optionId": "o-a", "timeSpent": 1},
	})
	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale answer: status %d", resp.StatusCode)
	}

	var ended domain.SessionSnapshot
	resp = do(t, srv, call{
		method: http.MethodPatch, path: "/api/sessions/" + created.ID + "/end",
		userID: "teacher-1", role: "teacher", decoded: &ended,
	})
	if resp.StatusCode != http.StatusOK || ended.State != domain.SessionEnded {
		t.Fatalf("end: status %d snapshot %+v", resp.StatusCode, ended)
	}

	var results []domain.QuizResult
	resp = do(t, srv, call{
		method: http.MethodGet, path: "/api/sessions/" + created.ID + "/results",
		decoded: &results,
	})
	if resp.StatusCode != http.StatusOK || len(results) != 1 || results[0].UserID != "alice" {
		t.Fatalf("results: status %d %+v", resp.StatusCode, results)
	}

	var stats domain.QuizStats
	resp = do(t, srv, call{
		method: http.MethodGet, path: "/api/sessions/" + created.ID + "/stats",
		decoded: &stats,
	})
	if resp.StatusCode != http.StatusOK || stats.TotalParticipants != 1 {
		t.Fatalf("stats: status %d %+v", resp.StatusCode, stats)
	}

	resp = do(t, srv, call{
		method: http.MethodGet, path: "/api/quizzes/quiz-1/stats",
		decoded: &stats,
	})
	if resp.StatusCode != http.StatusOK || stats.TotalParticipants != 1 {
		t.Fatalf("quiz stats: status %d %+v", resp.StatusCode, stats)
	}
}

func TestRESTAuthorization(t *testing.T) {
	srv, _ := newTestServer(t)

	// Creating a session needs the teacher role.
	resp := do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions",
		userID: "alice",
		body:   map[string]string{"quizId": "quiz-1"},
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student create: status %d", resp.StatusCode)
	}

	// Joining needs a user identity.
	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/join",
		body: map[string]string{"code": "ABC123"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("anonymous join: status %d", resp.StatusCode)
	}
}

func TestRESTErrorMapping(t *testing.T) {
	srv, svc := newTestServer(t)

	resp := do(t, srv, call{method: http.MethodGet, path: "/api/sessions/nope"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session: status %d", resp.StatusCode)
	}

	var errBody errorResponse
	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions",
		userID: "teacher-1", role: "teacher",
		body: map[string]string{"quizId": "no-such-quiz"}, decoded: &errBody,
	})
	if resp.StatusCode != http.StatusNotFound || errBody.Code != "quiz-not-found" {
		t.Fatalf("missing quiz: status %d body %+v", resp.StatusCode, errBody)
	}

	// Operations on an ended session map to 410.
	created, err := svc.CreateSession(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := svc.StartQuiz(created.ID); err != nil {
		t.Fatalf("StartQuiz: %v", err)
	}
	if err := svc.EndQuiz(created.ID); err != nil {
		t.Fatalf("EndQuiz: %v", err)
	}
	resp = do(t, srv, call{
		method: http.MethodPost, path: "/api/sessions/" + created.ID + "/start",
		userID: "teacher-1", role: "teacher",
	})
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("start ended session: status %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, srv, call{method: http.MethodGet, path: "/healthz"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
}
