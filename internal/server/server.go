// Package server exposes the earshot HTTP surface: the /voice WebSocket
// endpoint that carries a client's audio conversation, the /inbox endpoint
// that injects out-of-band notifications, and the health and metrics
// endpoints.
//
// Each accepted /voice connection gets its own [session.Session] built by the
// injected factory, registered for broadcast delivery, and torn down when
// either side goes away. The server owns only transport concerns; all
// conversation behaviour lives in the session.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/earshot/internal/health"
	"github.com/MrWong99/earshot/internal/observe"
	"github.com/MrWong99/earshot/internal/session"
	"github.com/MrWong99/earshot/pkg/audio"
	"github.com/MrWong99/earshot/pkg/wire"
)

// StatusInvalidToken is the WebSocket close code sent when /voice
// authentication fails.
const StatusInvalidToken websocket.StatusCode = 4001

// shutdownTimeout bounds graceful HTTP shutdown once the run context is
// cancelled.
const shutdownTimeout = 10 * time.Second

// Config holds the transport settings for a [Server].
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8127").
	ListenAddr string

	// AuthToken, when non-empty, is required by /voice (?token= query
	// parameter) and /inbox (Bearer credential). Empty disables auth.
	AuthToken string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// SessionFactory builds a fully wired session around one live connection.
// The server calls it once per accepted /voice socket.
type SessionFactory func(conn session.Conn) *session.Session

// Server serves the earshot HTTP and WebSocket endpoints.
type Server struct {
	cfg         Config
	newSession  SessionFactory
	registry    *session.Registry
	broadcaster *session.Broadcaster
	health      *health.Handler
	metrics     *observe.Metrics
	log         *slog.Logger
}

// New creates a [Server]. A nil metrics uses the package default.
func New(cfg Config, factory SessionFactory, registry *session.Registry, broadcaster *session.Broadcaster, healthHandler *health.Handler, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if healthHandler == nil {
		healthHandler = health.New()
	}
	return &Server{
		cfg:         cfg,
		newSession:  factory,
		registry:    registry,
		broadcaster: broadcaster,
		health:      healthHandler,
		metrics:     metrics,
		log:         slog.With("component", "server"),
	}
}

// Routes builds the HTTP handler. The JSON endpoints run behind the
// observability middleware; /voice is mounted outside it because the
// middleware's response wrapper would break the WebSocket upgrade.
func (s *Server) Routes() http.Handler {
	instrumented := http.NewServeMux()
	instrumented.HandleFunc("POST /inbox", s.handleInbox)
	instrumented.HandleFunc("GET /health", s.handleHealth)
	instrumented.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(instrumented)

	root := http.NewServeMux()
	root.HandleFunc("GET /voice", s.handleVoice)
	root.Handle("/", observe.Middleware(s.metrics)(instrumented))
	return root
}

// Run serves until ctx is cancelled, then shuts down gracefully. Live /voice
// connections are cancelled through their request contexts when the listener
// closes.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			s.log.Info("listening", "addr", s.cfg.ListenAddr, "tls", true)
			err = srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			s.log.Info("listening", "addr", s.cfg.ListenAddr, "tls", false)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("graceful shutdown incomplete, closing", "error", err)
			return srv.Close()
		}
		return nil
	})

	return g.Wait()
}

// ─── /voice ──────────────────────────────────────────────────────────────────

// wsConn adapts a WebSocket connection to the [session.Conn] surface.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: encode message: %w", err)
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) SendAudio(ctx context.Context, clip []byte) error {
	return c.ws.Write(ctx, websocket.MessageBinary, clip)
}

// handleVoice upgrades the connection, authenticates, and runs one session
// until the client disconnects or the server stops.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer ws.CloseNow()

	// Auth happens after the upgrade so the client receives a proper close
	// code instead of a failed handshake, and before any session state exists.
	if s.cfg.AuthToken != "" && r.URL.Query().Get("token") != s.cfg.AuthToken {
		s.log.Warn("voice connection rejected: bad token", "remote", r.RemoteAddr)
		ws.Close(StatusInvalidToken, "invalid token")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := s.newSession(&wsConn{ws: ws})
	log := s.log.With("session_id", sess.ID)
	log.Info("voice connection established", "remote", r.RemoteAddr)

	s.registry.Add(ctx, sess)
	defer s.registry.Remove(context.WithoutCancel(ctx), sess.ID)

	// Notifications that piled up while nobody was connected go out first.
	if n, err := s.broadcaster.Replay(ctx, sess); err != nil {
		log.Warn("inbox replay failed", "error", err)
	} else if n > 0 {
		log.Info("inbox replayed", "count", n)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(ctx) })
	g.Go(func() error { return s.readLoop(ctx, ws, sess) })

	err = g.Wait()
	switch {
	case err == nil || errors.Is(err, context.Canceled):
		log.Info("voice connection closed")
	case websocket.CloseStatus(err) != -1:
		log.Info("voice connection closed by client", "status", websocket.CloseStatus(err))
	default:
		log.Warn("voice connection failed", "error", err)
	}
	ws.Close(websocket.StatusNormalClosure, "")
}

// readLoop decodes inbound WebSocket messages and feeds them to the session.
// Returning an error cancels the shared context and with it any in-flight
// transcription, backend, or synthesis work.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, sess *session.Session) error {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		switch typ {
		case websocket.MessageBinary:
			sess.HandleAudio(audio.PCM16ToFloat32(data))
		case websocket.MessageText:
			c, err := wire.ParseControl(data)
			if err != nil {
				s.log.Warn("malformed control message", "session_id", sess.ID, "error", err)
				continue
			}
			sess.HandleControl(c)
		}
	}
}

// ─── /inbox ──────────────────────────────────────────────────────────────────

// inboxRequest is the POST /inbox payload.
type inboxRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	Speak    *bool  `json:"speak"`
}

// inboxResponse reports what happened to the notification.
type inboxResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// handleInbox accepts one out-of-band notification and fans it out to every
// connected session.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req inboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}
	speak := true
	if req.Speak != nil {
		speak = *req.Speak
	}

	n := wire.NewNotification(req.Title, req.Message, req.Priority, speak)
	delivered, queued, err := s.broadcaster.Deliver(r.Context(), n)
	if err != nil {
		s.log.Error("notification delivery failed", "error", err)
		http.Error(w, `{"error":"delivery failed"}`, http.StatusInternalServerError)
		return
	}

	resp := inboxResponse{Status: "delivered", Clients: delivered}
	if delivered == 0 {
		resp.Status = "queued"
		if !queued {
			resp.Status = "dropped"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// authorized checks the Bearer credential on /inbox. No configured token
// means the endpoint is open.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && token == s.cfg.AuthToken
}

// ─── /health ─────────────────────────────────────────────────────────────────

// healthResponse is the GET /health payload.
type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// handleHealth reports liveness plus the number of connected clients.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Clients: s.registry.Count()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}
