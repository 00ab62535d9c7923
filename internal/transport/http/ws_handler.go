package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// WSHandler wires websocket connections into the session use cases. Each
// connection attaches to at most one session at a time; inbound events carry
// the session id and are routed to that session's state machine.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type answerPayload struct {
	SessionID  string  `json:"sessionId"`
	QuestionID string  `json:"questionId"`
	OptionID   string  `json:"optionId"`
	TimeSpent  float64 `json:"timeSpent"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// subscription tracks one connection's attachment to a session's fan-out.
type subscription struct {
	cancel func()
	stop   chan struct{}
	done   chan struct{}
}

func (s *subscription) teardown() {
	close(s.stop)
	s.cancel()
	<-s.done
}

// ServeWS upgrades the request and runs the connection's event loop. The
// identity collaborator supplies userId and role via query parameters; the
// core trusts them and never re-derives role from payload content.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	role := r.URL.Query().Get("role")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	if role == "" {
		role = "student"
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				slog.Error("ws write failed", "error", err)
				return
			}
		}
	}()

	var sub *subscription
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "join-session":
			sub = h.handleJoin(send, sub, inbound.Payload, userID, role)
		case "leave-session":
			if sub != nil {
				sub.teardown()
				sub = nil
			}
		case "submit-answer":
			h.handleAnswer(send, inbound.Payload, userID)
		case "start-quiz":
			h.handleLifecycle(send, inbound.Payload, role, h.service.StartQuiz)
		case "end-quiz":
			h.handleLifecycle(send, inbound.Payload, role, h.service.EndQuiz)
		case "next-question":
			h.handleLifecycle(send, inbound.Payload, role, h.service.Advance)
		default:
			send <- errorMessage(errors.New("unsupported message type"))
		}
	}

	// A dropped connection only detaches this subscriber; the session itself
	// continues unaffected.
	if sub != nil {
		sub.teardown()
	}
	close(send)
	<-writerDone
}

func (h *WSHandler) handleJoin(send chan outboundMessage[any], sub *subscription, raw json.RawMessage, userID, role string) *subscription {
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == "" {
		send <- errorMessage(errors.New("invalid join-session payload"))
		return sub
	}
	if sub != nil {
		send <- errorMessage(errors.New("already attached to a session"))
		return sub
	}

	if role == "teacher" {
		if _, err := h.service.Snapshot(payload.SessionID); err != nil {
			send <- errorMessage(err)
			return nil
		}
	} else {
		// A reconnecting participant is already registered; re-attaching is
		// fine, it resyncs from the snapshot below.
		if _, err := h.service.Join(payload.SessionID, userID); err != nil && !errors.Is(err, domain.ErrDuplicateParticipant) {
			send <- errorMessage(err)
			return nil
		}
	}

	updates, cancel, err := h.service.Subscribe(payload.SessionID)
	if err != nil {
		send <- errorMessage(err)
		return nil
	}

	next := &subscription{
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(next.done)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}:
				case <-next.stop:
					return
				}
			case <-next.stop:
				return
			}
		}
	}()
	return next
}

func (h *WSHandler) handleAnswer(send chan outboundMessage[any], raw json.RawMessage, userID string) {
	var payload answerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		send <- errorMessage(errors.New("invalid submit-answer payload"))
		return
	}

	result, err := h.service.SubmitAnswer(payload.SessionID, userID, payload.QuestionID, payload.OptionID, payload.TimeSpent)
	if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
		send <- errorMessage(err)
		return
	}
	// On a duplicate the result echoes the first recorded answer; nothing was
	// re-scored.
	send <- outboundMessage[any]{Type: "answer-result", Payload: result}
}

func (h *WSHandler) handleLifecycle(send chan outboundMessage[any], raw json.RawMessage, role string, op func(string) error) {
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == "" {
		send <- errorMessage(errors.New("invalid payload"))
		return
	}
	if role != "teacher" {
		send <- errorMessage(errors.New("teacher role required"))
		return
	}
	if err := op(payload.SessionID); err != nil {
		send <- errorMessage(err)
	}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	}}
}
