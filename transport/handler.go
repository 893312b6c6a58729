package transport

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/session"

	"github.com/gorilla/websocket"
)

type HandlerConfig struct {
	DefaultRoom       string
	OutboundBuffer    int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxFrameSize      int64
	WriteTimeout      time.Duration
}

// Handler upgrades an incoming request into a session's transport
// connection. Identity resolution happens here, before the upgrade and
// outside the registry's serialized loop: a persistence fault means the
// session is simply never established.
type Handler struct {
	log      *slog.Logger
	registry contract.IRegistry
	users    repositories.IUserRepository
	config   HandlerConfig
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, registry contract.IRegistry,
	users repositories.IUserRepository, config HandlerConfig) *Handler {
	return &Handler{
		log:      log,
		registry: registry,
		users:    users,
		config:   config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	displayName, ok := h.resolveIdentity(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	wsConn := NewWSConn(conn, h.config.MaxFrameSize, h.config.WriteTimeout)
	sess := session.New(h.log, h.registry, wsConn, session.Options{
		DefaultRoom:       h.config.DefaultRoom,
		DisplayName:       displayName,
		OutboundBuffer:    h.config.OutboundBuffer,
		HeartbeatInterval: h.config.HeartbeatInterval,
		HeartbeatTimeout:  h.config.HeartbeatTimeout,
	})
	wsConn.OnLiveness(sess.Touch)

	if err := sess.Start(); err != nil {
		h.log.Error("Session registration failed", "remote", r.RemoteAddr, "error", err)
		_ = wsConn.Close()
		return
	}
	h.log.Info("Session established", "session_id", sess.ID(), "remote", r.RemoteAddr)
}

// resolveIdentity looks up the optional connect-time identity. A missing
// user is a client error; any other persistence fault refuses the
// connection without touching registry state.
func (h *Handler) resolveIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		return "", true
	}

	user, err := h.users.FindUserByID(userID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			http.Error(w, "unknown user", http.StatusNotFound)
			return "", false
		}
		h.log.Error("Identity lookup failed", "user_id", userID, "error", err)
		http.Error(w, "identity lookup failed", http.StatusServiceUnavailable)
		return "", false
	}
	return user.DisplayName, true
}
