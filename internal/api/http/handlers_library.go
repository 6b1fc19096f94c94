package apihttp

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
)

// handleLibraries serves the library-browsing surface (spec.md's expanded
// scope, not the core-relevant subset in §6): POST/GET /api/libraries.
// Modelled on the teacher's torrent CRUD handlers — a bson-backed
// repository behind a thin JSON envelope, no business logic of its own.
func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	if s.libraries == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "library repository not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		libs, err := s.libraries.List(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, libs)
	case http.MethodPost:
		var req struct {
			Name  string              `json:"name"`
			Type  domain.LibraryType  `json:"type"`
			Roots []string            `json:"roots"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
		if strings.TrimSpace(req.Name) == "" || len(req.Roots) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "name and roots are required")
			return
		}
		now := time.Now()
		lib := domain.Library{
			ID:        uuid.NewString(),
			Name:      req.Name,
			Type:      req.Type,
			Roots:     req.Roots,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.libraries.Create(r.Context(), lib); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, lib)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET and POST are supported")
	}
}

func (s *Server) handleLibraryByID(w http.ResponseWriter, r *http.Request) {
	if s.libraries == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "library repository not configured")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/libraries/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "library id required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		lib, err := s.libraries.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lib)
	case http.MethodDelete:
		if err := s.libraries.Delete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET and DELETE are supported")
	}
}

// handleItems serves GET /api/items?libraryId=<id>, listing items scoped to
// a library.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	if s.items == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "item repository not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	items, err := s.items.List(r.Context(), r.URL.Query().Get("libraryId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleItemGet serves GET /api/items/<item-uuid>, the plain item lookup
// that sits alongside handleItemsByID's /convert sub-route.
func (s *Server) handleItemGet(w http.ResponseWriter, r *http.Request, itemID string) {
	if s.items == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "item repository not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	item, err := s.items.Get(r.Context(), itemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
