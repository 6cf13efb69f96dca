package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/raisecoach/internal/chat"
	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
)

const modeFeedback = "feedback"

type chatRequest struct {
	Messages     []conversation.Message `json:"messages"`
	SystemPrompt string                 `json:"systemPrompt"`
	Mode         string                 `json:"mode"`
}

type gradeRequest struct {
	Messages []conversation.Message `json:"messages"`
	Persona  string                 `json:"persona"`
	Outcome  string                 `json:"outcome"`
}

type realtimeRequest struct {
	Persona      string `json:"persona"`
	TargetAmount string `json:"targetAmount"`
}

func validateTranscript(msgs []conversation.Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: messages are required", errBadRequest)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", errBadRequest, i, m.Role)
		}
	}
	return nil
}

func (s *Server) listPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"personas": persona.All()})
}

// negotiationChat is the stateless chat endpoint: the client owns the
// transcript and the system prompt.
func (s *Server) negotiationChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		s.writeError(w, r, fmt.Errorf("%w: LLM gateway is not configured", errNotConfigured), nil)
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if err := validateTranscript(req.Messages); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		s.writeError(w, r, fmt.Errorf("%w: systemPrompt is required", errBadRequest), nil)
		return
	}

	var (
		reply chat.Reply
		err   error
	)
	if req.Mode == modeFeedback {
		reply, err = s.deps.Chat.Feedback(r.Context(), req.Messages, req.SystemPrompt)
	} else {
		reply, err = s.deps.Chat.Reply(r.Context(), req.Messages, req.SystemPrompt)
	}
	if err != nil {
		s.writeError(w, r, err, reply.CoachingTip)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) gradeConversation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Grader == nil {
		s.writeError(w, r, fmt.Errorf("%w: LLM gateway is not configured", errNotConfigured), nil)
		return
	}
	var req gradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if err := validateTranscript(req.Messages); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	outcome, err := conversation.ParseOutcome(req.Outcome)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}

	result, err := s.deps.Grader.Grade(r.Context(), req.Messages, req.Persona, outcome)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) realtimeSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Realtime == nil {
		s.writeError(w, r, fmt.Errorf("%w: realtime voice is not configured", errNotConfigured), nil)
		return
	}
	var req realtimeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if strings.TrimSpace(req.TargetAmount) == "" {
		s.writeError(w, r, fmt.Errorf("%w: targetAmount is required", errBadRequest), nil)
		return
	}

	session, err := s.deps.Realtime.Mint(r.Context(), req.Persona, req.TargetAmount)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(session)
}
