package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "mediavault/internal/api/http"
	"mediavault/internal/app"
	"mediavault/internal/convert"
	"mediavault/internal/domain"
	"mediavault/internal/eventbus"
	"mediavault/internal/jobstore"
	"mediavault/internal/metrics"
	"mediavault/internal/notify"
	"mediavault/internal/prepcache"
	mongorepo "mediavault/internal/repository/mongo"
	"mediavault/internal/resolver"
	"mediavault/internal/sendfile"
	"mediavault/internal/session"
	"mediavault/internal/telemetry"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "mediavault")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "mediavault"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("mongoDatabase", cfg.MongoDatabase),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, connectCancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer connectCancel()

	mongoOpts := otelmongo.NewMonitor()
	mongoClient, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(mongoOpts))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	libraries := mongorepo.NewLibraryRepository(mongoClient, cfg.MongoDatabase, "libraries")
	items := mongorepo.NewItemRepository(mongoClient, cfg.MongoDatabase, "items")
	mediaFiles := mongorepo.NewMediaFileRepository(mongoClient, cfg.MongoDatabase, "media_files")
	userData := mongorepo.NewUserItemDataRepository(mongoClient, cfg.MongoDatabase, "user_item_data")
	jobs := jobstore.New(mongoClient, cfg.MongoDatabase, "conversion_jobs")

	if err := libraries.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("ensure indexes failed", slog.String("collection", "libraries"), slog.String("error", err.Error()))
	}
	if err := items.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("ensure indexes failed", slog.String("collection", "items"), slog.String("error", err.Error()))
	}
	if err := mediaFiles.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("ensure indexes failed", slog.String("collection", "media_files"), slog.String("error", err.Error()))
	}
	if err := userData.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("ensure indexes failed", slog.String("collection", "user_item_data"), slog.String("error", err.Error()))
	}
	if err := jobs.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("ensure indexes failed", slog.String("collection", "conversion_jobs"), slog.String("error", err.Error()))
	}

	// The Profile Classifier and Profile-B Qualifier (spec.md §4.6-§4.7) run
	// inside the filesystem scanner, which spec.md §1 names as an external
	// collaborator outside this subsystem's scope — so nothing in this
	// process graph calls internal/classifier or internal/probe; they are
	// exercised solely by their own package tests.

	opener := osFileOpener{}
	cache := prepcache.New(mediaFiles, opener, cfg.PrepCacheMaxEntries)
	bus := eventbus.New()
	streamResolver := resolver.New(mediaFiles)
	sessions := session.New(rootCtx)

	var webhookTargets []notify.Target
	for _, t := range cfg.WebhookTargets {
		webhookTargets = append(webhookTargets, notify.Target{Name: t.Name, URL: t.URL})
	}
	notifier := notify.New(webhookTargets, logger)

	worker := convert.New(jobs, mediaFiles, cache, bus, notifier, convert.Config{
		EncoderPath: cfg.FFMPEGPath,
		Conversion: domain.ConversionConfig{
			CRF:          cfg.ConversionCRF,
			Preset:       cfg.ConversionPreset,
			AudioBitrate: cfg.ConversionAudioBitrate,
			AdaptiveCRF:  cfg.ConversionAdaptiveCRF,
		},
		WorkerID: "worker-1",
	}, logger)
	go worker.Run(rootCtx)

	// An empty AUTH_TOKEN means dev mode: every credential form passes,
	// mirroring the teacher's "empty CORSAllowedOrigins = allow all" fallback.
	// This keeps sendfile.Config.Auth non-nil, since its authenticate() call
	// has no nil guard of its own.
	var auth sendfile.Authenticator = permissiveAuthenticator{}
	if cfg.AuthToken != "" {
		auth = sendfile.StaticTokenAuthenticator{Token: cfg.AuthToken}
	} else {
		logger.Warn("AUTH_TOKEN not set, running in dev mode with no credential checks")
	}

	httpServer := apihttp.New(cache,
		apihttp.WithLogger(logger),
		apihttp.WithMediaFiles(mediaFiles),
		apihttp.WithItems(items),
		apihttp.WithLibraries(libraries),
		apihttp.WithUserItemData(userData),
		apihttp.WithJobs(jobs),
		apihttp.WithEventBus(bus),
		apihttp.WithSessions(sessions),
		apihttp.WithResolver(streamResolver),
		apihttp.WithAuth(auth),
	)
	go httpServer.Run(rootCtx)

	// fallbackListener hands any connection the sendfile server didn't
	// claim as a fast-path route into the ordinary net/http Serve loop,
	// without needing a second TCP listener.
	fallback := newFallbackListener(cfg.HTTPAddr)
	go func() {
		if err := http.Serve(fallback, httpServer); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("http serve error", slog.String("error", err.Error()))
		}
	}()

	sendfileServer := sendfile.New(sendfile.Config{
		StreamPrefix: cfg.StreamPrefix,
		Auth:         auth,
	}, sendfile.Handlers{Cache: cache, Files: mediaFiles}, fallback.handoff, logger)

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		logger.Error("listen failed", slog.String("addr", cfg.HTTPAddr), slog.String("error", err.Error()))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- sendfileServer.Serve(listener)
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("sendfile server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	httpServer.Close()
	_ = listener.Close()
	_ = fallback.Close()
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// fallbackListener is a net.Listener whose Accept drains a channel rather
// than a socket. The sendfile server's fallback callback pushes connections
// it didn't claim onto the channel so the plain net/http Serve loop can
// treat them exactly like any other accepted connection.
type fallbackListener struct {
	addr   net.Addr
	conns  chan net.Conn
	closed chan struct{}
}

func newFallbackListener(addr string) *fallbackListener {
	return &fallbackListener{
		addr:   fallbackAddr(addr),
		conns:  make(chan net.Conn, 64),
		closed: make(chan struct{}),
	}
}

func (l *fallbackListener) handoff(conn net.Conn) {
	select {
	case l.conns <- conn:
	case <-l.closed:
		_ = conn.Close()
	}
}

func (l *fallbackListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *fallbackListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func (l *fallbackListener) Addr() net.Addr { return l.addr }

type fallbackAddrString string

func (a fallbackAddrString) Network() string { return "tcp" }
func (a fallbackAddrString) String() string  { return string(a) }

func fallbackAddr(addr string) net.Addr { return fallbackAddrString(addr) }

// permissiveAuthenticator is the dev-mode fallback when AUTH_TOKEN is unset.
type permissiveAuthenticator struct{}

func (permissiveAuthenticator) CheckBearer(string) bool        { return true }
func (permissiveAuthenticator) CheckSessionCookie(string) bool { return true }
func (permissiveAuthenticator) CheckEmbyToken(string) bool     { return true }

// osFileOpener is the only concrete prepcache.FileOpener in this process: a
// thin os.Open+os.Stat adapter, since the interface just needs ReadAt/Close
// plus a size.
type osFileOpener struct{}

func (osFileOpener) Open(path string) (prepcache.ReaderAtCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	handlerOpts := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
