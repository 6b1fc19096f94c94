package sendfile

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Config configures the Sendfile Server's routing and authentication.
type Config struct {
	// StreamPrefix is the path segment preceding the media-file UUID in
	// segment/direct routes, e.g. "api/stream" for "/api/stream/<uuid>/...".
	StreamPrefix string
	Auth         Authenticator
}

// Server peeks every accepted connection's first request line and, for the
// three fast-path patterns in spec.md §4.8, serves it directly off a
// dedicated goroutine via zero-copy sendfile(2); everything else is handed
// to Fallback unmodified.
type Server struct {
	cfg      Config
	handlers Handlers
	fallback func(net.Conn)
	logger   *slog.Logger
}

// New returns a Server. fallback receives any accepted connection whose
// first request didn't match a fast-path route — typically a func wiring
// the conn into the normal net/http Serve loop (e.g. via a channel-backed
// net.Listener).
func New(cfg Config, handlers Handlers, fallback func(net.Conn), logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, handlers: handlers, fallback: fallback, logger: logger}
}

// Serve accepts connections from ln forever, classifying each one and
// either claiming it for the fast path or handing it to s.fallback.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			s.fallback(conn)
			continue
		}
		go s.acceptOne(tcpConn)
	}
}

func (s *Server) acceptOne(conn *net.TCPConn) {
	peekBuf, err := peekRequestLine(conn)
	if err != nil {
		conn.Close()
		return
	}
	path, ok := extractGETPath(peekBuf)
	if !ok {
		s.fallback(conn)
		return
	}
	route := ClassifyPath(s.cfg.StreamPrefix, path)
	if route.Kind == RouteNone {
		s.fallback(conn)
		return
	}
	s.handleConnection(conn, route)
}

// handleConnection reads the full request, authenticates once, dispatches
// the classified route, and then loops serving additional fast-path
// requests on the same connection until the client closes it, a
// non-fast-path request arrives, or the keep-alive timeout elapses.
func (s *Server) handleConnection(conn *net.TCPConn, route Route) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(headerReadTimeout))
	br := bufio.NewReaderSize(conn, maxHeaderBytes)

	req, err := readRequest(br)
	if err != nil {
		return
	}
	if !authenticate(s.cfg.Auth, req) {
		_ = writeUnauthorized(conn)
		return
	}

	ctx := context.Background()
	if err := s.dispatch(ctx, conn, route, req); err != nil {
		s.logger.Debug("sendfile response failed", slog.String("error", err.Error()))
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(keepAliveReadTimeout))
	for {
		nextReq, err := readRequest(br)
		if err != nil {
			return
		}
		nextRoute := ClassifyPath(s.cfg.StreamPrefix, nextReq.Path)
		if nextRoute.Kind == RouteNone {
			return
		}
		if err := s.dispatch(ctx, conn, nextRoute, nextReq); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(keepAliveReadTimeout))
	}
}

func (s *Server) dispatch(ctx context.Context, conn *net.TCPConn, route Route, req parsedRequest) error {
	switch route.Kind {
	case RouteSegment:
		return s.handlers.serveSegment(ctx, conn, route.MediaFileID, route.SegmentIndex)
	case RouteDirect:
		return s.handlers.serveDirect(ctx, conn, route.MediaFileID, req.Range)
	case RouteJellyfin:
		return s.handlers.serveJellyfin(ctx, conn, route.ItemID, mediaSourceIDFromQuery(req.Path), req.Range)
	default:
		return nil
	}
}

// mediaSourceIDFromQuery extracts the mediaSourceId/MediaSourceId query
// parameter from a Jellyfin-style stream request path.
func mediaSourceIDFromQuery(path string) string {
	_, query, ok := strings.Cut(path, "?")
	if !ok {
		return ""
	}
	for _, param := range strings.Split(query, "&") {
		if v, ok := strings.CutPrefix(param, "mediaSourceId="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(param, "MediaSourceId="); ok {
			return v
		}
	}
	return ""
}
