package apihttp

import "net/http"

type healthResponse struct {
	Status         string `json:"status"`
	CacheEntries   int    `json:"cacheEntries"`
	ActiveSessions int    `json:"activeSessions"`
}

// handleHealth serves GET /internal/health, grounded on the teacher's
// health-ticker broadcast — a cheap liveness snapshot rather than a deep
// dependency check, since Mongo/ffmpeg reachability is already surfaced
// through request-path errors and Prometheus.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.cache != nil {
		resp.CacheEntries = s.cache.Len()
	}
	if s.sessions != nil {
		resp.ActiveSessions = len(s.sessions.List())
	}
	writeJSON(w, http.StatusOK, resp)
}
