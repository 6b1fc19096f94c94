package apihttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"mediavault/internal/domain"
)

// handleUserItemData serves GET/PUT /api/users/<user-id>/items/<item-id>/data:
// a user's playback bookkeeping for one item (spec.md §3's UserItemData),
// grounded on the teacher's watch-history repository surface.
func (s *Server) handleUserItemData(w http.ResponseWriter, r *http.Request) {
	if s.userData == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "user item data repository not configured")
		return
	}
	userID, itemID, ok := parseUserItemDataPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown user item data route")
		return
	}

	switch r.Method {
	case http.MethodGet:
		data, err := s.userData.Get(r.Context(), userID, itemID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	case http.MethodPut:
		var req domain.UserItemData
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
		req.UserID = userID
		req.ItemID = itemID
		if err := s.userData.Upsert(r.Context(), req); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET and PUT are supported")
	}
}

// parseUserItemDataPath extracts the two path parameters out of
// /api/users/<user-id>/items/<item-id>/data.
func parseUserItemDataPath(path string) (userID, itemID string, ok bool) {
	rest := strings.TrimPrefix(path, "/api/users/")
	userID, rest, ok = strings.Cut(rest, "/items/")
	if !ok || userID == "" {
		return "", "", false
	}
	itemID, suffix, ok := strings.Cut(rest, "/")
	if !ok || itemID == "" || suffix != "data" {
		return "", "", false
	}
	return userID, itemID, true
}
