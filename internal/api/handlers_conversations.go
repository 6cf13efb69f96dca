package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/raisecoach/internal/auth"
	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/store"
)

type startRequest struct {
	Persona     string `json:"persona"`
	TargetRaise string `json:"targetRaise"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type completeRequest struct {
	Outcome string `json:"outcome"`
}

// caller returns the authenticated user and, when the route has one, the
// conversation id path parameter. It writes the error response itself.
func (s *Server) caller(w http.ResponseWriter, r *http.Request, withID bool) (userID, convID uuid.UUID, ok bool) {
	if s.deps.Negotiations == nil {
		s.writeError(w, r, fmt.Errorf("%w: conversation store is not configured", errNotConfigured), nil)
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok = auth.UserIDFromContext(r.Context())
	if !ok {
		s.writeError(w, r, auth.ErrUnauthenticated, nil)
		return uuid.Nil, uuid.Nil, false
	}
	if withID {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			// Malformed ids can never match a stored conversation.
			s.writeError(w, r, store.ErrNotFound, nil)
			return uuid.Nil, uuid.Nil, false
		}
		convID = id
	}
	return userID, convID, true
}

func (s *Server) startConversation(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := s.caller(w, r, false)
	if !ok {
		return
	}
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	started, err := s.deps.Negotiations.Start(r.Context(), userID, req.Persona, req.TargetRaise)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, started)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := s.caller(w, r, false)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: invalid limit %q", errBadRequest, v), nil)
			return
		}
		limit = n
	}

	list, err := s.deps.Negotiations.History(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.caller(w, r, true)
	if !ok {
		return
	}
	c, err := s.deps.Negotiations.Get(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.caller(w, r, true)
	if !ok {
		return
	}
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	res, err := s.deps.Negotiations.Turn(r.Context(), userID, id, req.Content)
	if err != nil {
		s.writeError(w, r, err, res.Reply.CoachingTip)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) completeConversation(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.caller(w, r, true)
	if !ok {
		return
	}
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	c, err := s.deps.Negotiations.Complete(r.Context(), userID, id, conversation.Outcome(req.Outcome))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) getCredits(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := s.caller(w, r, false)
	if !ok {
		return
	}
	n, err := s.deps.Negotiations.Credits(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": n})
}

func (s *Server) purchaseCredits(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := s.caller(w, r, false)
	if !ok {
		return
	}
	n, err := s.deps.Negotiations.GrantPurchase(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": n})
}
