package apihttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"mediavault/internal/domain"
)

// handleSessions dispatches the three fixed sub-routes under /api/sessions/:
// start, progress, stop (spec.md §4.12/§4.13's Session Manager and
// Streaming Resolver, exposed here as this rewrite's player-facing
// surface — grounded on the teacher's player-settings handlers, generalised
// from one scalar focus slot to a full session lifecycle).
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	action := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	switch action {
	case "start":
		s.handleSessionStart(w, r)
	case "progress":
		s.handleSessionProgress(w, r)
	case "stop":
		s.handleSessionStop(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown session route")
	}
}

type sessionStartRequest struct {
	ItemID        string `json:"itemId"`
	MediaSourceID string `json:"mediaSourceId,omitempty"`
}

type sessionStartResponse struct {
	SessionID string               `json:"sessionId"`
	Source    domain.PlaybackSource `json:"source"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil || s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session surface not configured")
		return
	}
	var req sessionStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.ItemID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "itemId is required")
		return
	}

	source, err := s.resolver.Resolve(r.Context(), req.ItemID, req.MediaSourceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	session := s.sessions.Start(req.ItemID, source.MediaFileID, source.Route)
	writeJSON(w, http.StatusCreated, sessionStartResponse{SessionID: session.ID, Source: source})
}

type sessionProgressRequest struct {
	SessionID     string `json:"sessionId"`
	PositionTicks int64  `json:"positionTicks"`
}

func (s *Server) handleSessionProgress(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session surface not configured")
		return
	}
	var req sessionProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := s.sessions.Progress(req.SessionID, req.PositionTicks); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionStopRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session surface not configured")
		return
	}
	var req sessionStopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := s.sessions.Stop(req.SessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminSessions serves GET /api/admin/sessions: the full live session
// list, for the admin live-monitoring surface.
func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session surface not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.List())
}
