// Package server hosts the ingestion endpoint: a WebSocket acceptor that
// spawns one recording session per connection, plus the metrics and health
// endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meetscribe/meetscribe/internal/config"
	"github.com/meetscribe/meetscribe/internal/health"
	"github.com/meetscribe/meetscribe/internal/observe"
	"github.com/meetscribe/meetscribe/internal/pipeline"
	"github.com/meetscribe/meetscribe/internal/session"
)

// maxFrameBytes caps a single inbound WebSocket message. Audio frames are a
// few hundred KiB at most; anything near this limit is a protocol violation.
const maxFrameBytes = 16 << 20

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8765".
	Addr string

	// Recording carries the capture flags and windows applied to every
	// session.
	Recording config.RecordingConfig

	// Pipeline, when non-nil, processes each sealed archive.
	Pipeline *pipeline.Pipeline

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Server accepts WebSocket connections and owns the lifecycle of their
// sessions.
type Server struct {
	opts    Options
	log     *slog.Logger
	metrics *observe.Metrics

	httpSrv *http.Server

	mu       sync.Mutex
	sessions map[*session.Session]struct{}

	readers   sync.WaitGroup
	pipelines sync.WaitGroup
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	s := &Server{
		opts:     opts,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		sessions: make(map[*session.Session]struct{}),
	}
	if err := os.MkdirAll(opts.Recording.Root, 0o755); err != nil {
		opts.Logger.Warn("creating recordings root", "path", opts.Recording.Root, "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	health.New(health.DirWritable("recordings_root", opts.Recording.Root)).Register(mux)

	s.httpSrv = &http.Server{
		Addr:    opts.Addr,
		Handler: observe.Middleware(opts.Metrics)(mux),
	}
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.opts.Addr)
		if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections, closes every active session with
// reason "shutdown", and waits for their finalisation and for in-flight
// pipeline runs, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)

	s.mu.Lock()
	active := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		active = append(active, sess)
	}
	s.mu.Unlock()

	s.log.Info("closing active sessions", "count", len(active))
	for _, sess := range active {
		sess.Close(session.ReasonShutdown, nil)
	}

	done := make(chan struct{})
	go func() {
		s.readers.Wait()
		s.pipelines.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown grace period expired with work still in flight")
		return ctx.Err()
	}
	return err
}

// handleWS upgrades the connection and runs the session read loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Local-trusted deployment: the browser agent connects from
		// arbitrary meeting origins.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	sess, err := session.New(session.Options{
		Root:                   s.opts.Recording.Root,
		EnableMixedAudio:       s.opts.Recording.EnableMixedAudio,
		EnableParticipantAudio: s.opts.Recording.EnableParticipantAudio,
		InactivityTimeout:      s.opts.Recording.InactivityTimeout,
		PendingAudioWindow:     s.opts.Recording.PendingAudioWindow,
		Logger:                 s.log,
		Metrics:                s.metrics,
		OnTerminate: func(reason string) {
			conn.Close(websocket.StatusNormalClosure, reason)
		},
		OnArchived: s.runPipeline,
	})
	if err != nil {
		s.log.Error("creating session", "error", err)
		conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.readers.Add(1)
	defer s.readers.Done()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()

	// The request context dies when this handler returns, so the read loop
	// runs here and uses its own context.
	s.readLoop(context.Background(), conn, sess)
}

// readLoop feeds inbound binary messages into the session until the socket
// closes or errors.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				sess.Close(session.ReasonClientClose, nil)
			case -1:
				if sess.Closed() {
					// The session initiated the close; the read error is
					// just the socket going away underneath us.
					return
				}
				sess.Close(session.ReasonSocketError, err)
			default:
				sess.Close(session.ReasonSocketError, err)
			}
			return
		}
		if typ != websocket.MessageBinary {
			s.log.Debug("ignoring non-binary websocket message", "session_id", sess.ID())
			continue
		}
		sess.HandleMessage(data)
	}
}

// runPipeline registers a pipeline run for a sealed archive and processes it
// on its own goroutine. The session invokes this synchronously on its close
// path, so the WaitGroup increment happens before Close returns and hence
// before Shutdown can start waiting on in-flight runs.
func (s *Server) runPipeline(archiveDir string) {
	if s.opts.Pipeline == nil {
		return
	}
	s.pipelines.Add(1)
	go func() {
		defer s.pipelines.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.opts.Pipeline.Run(ctx, archiveDir); err != nil {
			s.log.Error("post-archive pipeline failed", "archive_dir", archiveDir, "error", err)
		}
	}()
}
