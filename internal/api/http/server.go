// Package apihttp is the plain net/http half of the external interface in
// spec.md §6. The three sendfile fast-path routes (segment, direct, the
// Jellyfin-compatible stream) never reach this package — internal/sendfile
// claims those connections straight off the listener's Accept loop and
// serves them with raw socket writes. Everything else — the playlist and
// init-segment routes, conversion submission, admin job control, and the
// SSE event feed — is an ordinary JSON/text HTTP handler and lives here.
package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediavault/internal/domain/ports"
	"mediavault/internal/sendfile"
)

// Server is the HTTP entrypoint for the non-sendfile surface. Construct it
// with New and the functional options below, then Serve it directly (it
// implements http.Handler) or hand it to http.Server.
type Server struct {
	logger *slog.Logger

	cache     ports.PreparationCache
	files     ports.MediaFileRepository
	items     ports.ItemRepository
	libraries ports.LibraryRepository
	userData  ports.UserItemDataRepository
	jobs      ports.ConversionJobRepository
	bus       ports.EventBus
	sessions  ports.SessionManager
	resolver  ports.Resolver
	auth      sendfile.Authenticator

	wsHub   *wsHub
	handler http.Handler
}

// Option configures a Server before its route table and middleware chain
// are built.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithMediaFiles(files ports.MediaFileRepository) Option {
	return func(s *Server) { s.files = files }
}

func WithItems(items ports.ItemRepository) Option {
	return func(s *Server) { s.items = items }
}

func WithJobs(jobs ports.ConversionJobRepository) Option {
	return func(s *Server) { s.jobs = jobs }
}

func WithLibraries(libraries ports.LibraryRepository) Option {
	return func(s *Server) { s.libraries = libraries }
}

func WithUserItemData(userData ports.UserItemDataRepository) Option {
	return func(s *Server) { s.userData = userData }
}

func WithSessions(sessions ports.SessionManager) Option {
	return func(s *Server) { s.sessions = sessions }
}

func WithResolver(resolver ports.Resolver) Option {
	return func(s *Server) { s.resolver = resolver }
}

func WithEventBus(bus ports.EventBus) Option {
	return func(s *Server) { s.bus = bus }
}

func WithAuth(auth sendfile.Authenticator) Option {
	return func(s *Server) { s.auth = auth }
}

// New builds a Server backed by cache for the playlist/init routes. Any
// route whose backing dependency was never wired via an Option responds
// 500 rather than panicking.
func New(cache ports.PreparationCache, opts ...Option) *Server {
	s := &Server{cache: cache}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream/", s.handleStream)
	mux.HandleFunc("/api/items/", s.handleItemsByID)
	mux.HandleFunc("/api/items", s.handleItems)
	mux.HandleFunc("/api/libraries/", s.handleLibraryByID)
	mux.HandleFunc("/api/libraries", s.handleLibraries)
	mux.HandleFunc("/api/users/", s.handleUserItemData)
	mux.HandleFunc("/api/sessions/", s.handleSessions)
	mux.HandleFunc("/api/admin/sessions", s.handleAdminSessions)
	mux.HandleFunc("/api/admin/conversion-jobs", s.handleConversionJobs)
	mux.HandleFunc("/api/admin/conversion-jobs/", s.handleConversionJobByID)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/ws", s.handleAdminWS)
	mux.HandleFunc("/internal/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(
		loggingMiddleware(s.logger, authMiddleware(s.auth, mux)),
		"mediavault",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run starts the admin websocket's periodic broadcast loop and blocks until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.runAdminBroadcastLoop(ctx)
}

// Close disconnects every admin websocket client and stops the hub.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

// handleStream dispatches the three non-sendfile /api/stream/<mf-uuid>/...
// routes. Any other suffix under the prefix (segment_N.m4s, direct) would
// already have been claimed by internal/sendfile before the connection
// reached net/http, so falling through to 404 here only happens for a
// genuinely unrecognised path.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/stream/")
	mediaFileID, suffix, ok := strings.Cut(rest, "/")
	if !ok || mediaFileID == "" {
		writeError(w, http.StatusNotFound, "not_found", "unknown stream path")
		return
	}
	switch suffix {
	case "master.m3u8":
		s.handleMasterPlaylist(w, r, mediaFileID)
	case "playlist.m3u8":
		s.handleMediaPlaylist(w, r, mediaFileID)
	case "init.mp4":
		s.handleInitSegment(w, r, mediaFileID)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown stream path")
	}
}
