package apihttp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
)

// handleItemsByID dispatches /api/items/<item-uuid> and its one sub-route,
// POST /api/items/<item-uuid>/convert (spec.md §6's core-relevant subset).
// The bare item lookup is this rewrite's own expansion, grounded on the
// teacher's single-torrent GET route.
func (s *Server) handleItemsByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/items/")
	itemID, suffix, hasSuffix := strings.Cut(rest, "/")
	if itemID == "" {
		writeError(w, http.StatusNotFound, "not_found", "unknown item route")
		return
	}
	if !hasSuffix {
		s.handleItemGet(w, r, itemID)
		return
	}
	if suffix != "convert" {
		writeError(w, http.StatusNotFound, "not_found", "unknown item route")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "convert requires POST")
		return
	}
	s.handleConvert(w, r, itemID)
}

type convertResponse struct {
	JobID             string `json:"jobId"`
	ItemID            string `json:"itemId"`
	SourceMediaFileID string `json:"sourceMediaFileId"`
	Status            string `json:"status"`
}

// handleConvert submits a Profile-B conversion job for itemID's best
// eligible source file, cancelling any non-terminal job already queued or
// running for the item first (spec.md §4.9: at most one non-terminal job
// per item).
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request, itemID string) {
	if s.items == nil || s.files == nil || s.jobs == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "conversion pipeline not configured")
		return
	}
	ctx := r.Context()

	if _, err := s.items.Get(ctx, itemID); err != nil {
		writeDomainError(w, err)
		return
	}

	files, err := s.files.ListByItem(ctx, itemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	source, ok := eligibleConversionSource(files)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "item has no media file eligible for profile B conversion")
		return
	}

	if err := s.cancelNonTerminalJobs(ctx, itemID); err != nil {
		writeDomainError(w, err)
		return
	}

	now := time.Now()
	job := domain.ConversionJob{
		ID:                uuid.NewString(),
		ItemID:            itemID,
		SourceMediaFileID: source.ID,
		Status:            domain.JobQueued,
		SubmittedAt:       now,
		UpdatedAt:         now,
	}
	if err := s.jobs.Submit(ctx, job); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, convertResponse{
		JobID:             job.ID,
		ItemID:            job.ItemID,
		SourceMediaFileID: job.SourceMediaFileID,
		Status:            string(job.Status),
	})
}

// eligibleConversionSource picks the first Profile-C file that the
// classifier judged could qualify as Profile B (domain.MediaFile.CanBeProfileB),
// in list order — the same order internal/repository/mongo returns files
// in (creation order), so the original/highest-quality source wins ties.
func eligibleConversionSource(files []domain.MediaFile) (domain.MediaFile, bool) {
	for _, mf := range files {
		if mf.Profile == domain.ProfileC && mf.CanBeProfileB {
			return mf, true
		}
	}
	return domain.MediaFile{}, false
}

// cancelNonTerminalJobs cancels every queued or running job already open
// for itemID, enforcing the at-most-one-non-terminal-job invariant before a
// new one is submitted.
func (s *Server) cancelNonTerminalJobs(ctx context.Context, itemID string) error {
	existing, err := s.jobs.ListByItem(ctx, itemID)
	if err != nil {
		return err
	}
	for _, job := range existing {
		if job.Status.Terminal() {
			continue
		}
		if _, _, err := s.jobs.Cancel(ctx, job.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleConversionJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	if s.jobs == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "job store not configured")
		return
	}
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

type cancelResponse struct {
	Cancelled  bool `json:"cancelled"`
	WasRunning bool `json:"wasRunning"`
}

func (s *Server) handleConversionJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/conversion-jobs/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "job id required")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only DELETE is supported")
		return
	}
	if s.jobs == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "job store not configured")
		return
	}
	cancelled, wasRunning, err := s.jobs.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: cancelled, WasRunning: wasRunning})
}
