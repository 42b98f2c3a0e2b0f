// Package relay implements the signaling server: a registry of identified
// connections, presence broadcasting, and best-effort routing of negotiation
// frames between peers.
package relay

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SitePen/webrtc-blog/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,

	// Peer ids are self-asserted and unauthenticated; checking the origin
	// would not add anything here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts websocket connections and owns the registry. The version
// token is generated once per process and never changes, so clients can tell
// a restarted server from the one they last spoke to.
type Server struct {
	version  string
	registry *Registry
	log      *slog.Logger
}

func NewServer(log *slog.Logger) *Server {
	return &Server{
		version:  uuid.NewString(),
		registry: NewRegistry(log),
		log:      log,
	}
}

// Version returns the process-lifetime version token.
func (s *Server) Version() string { return s.version }

// Registry exposes the connection registry.
func (s *Server) Registry() *Registry { return s.registry }

// ServeWS upgrades the request and runs the connection. The client is
// assigned a fresh id and greeted with a ready frame before anything else.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "err", err)
		return
	}

	client := newClient(uuid.NewString(), s.registry, conn, s.log)
	client.TrySend(protocol.NewReady(s.version, client.ID()))

	go client.writePump()
	go client.readPump()
}

// Handler returns the full HTTP surface: the websocket endpoint, a health
// check, and an explicit 404 for everything else so no socket is ever left
// dangling on a mistyped path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Signaling server is healthy."))
	})
	return mux
}
