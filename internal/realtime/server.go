package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/example/jewelry/internal/models"
)

const (
	connectionBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Authenticator resolves a bearer credential to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Server upgrades HTTP requests to websocket connections and registers them on a Hub.
type Server struct {
	hub            *Hub
	auth           Authenticator
	logger         *slog.Logger
	originPatterns []string
}

// NewServer constructs a Server. originPatterns restrict cross-origin handshakes;
// empty means same-origin only.
func NewServer(hub *Hub, auth Authenticator, logger *slog.Logger, originPatterns []string) *Server {
	return &Server{hub: hub, auth: auth, logger: logger, originPatterns: originPatterns}
}

// Handler returns the HTTP handler serving the socket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// bearerToken reads the credential from the Authorization header or the token query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}
	user, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.logger.Debug("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.hub.Register(user.ID, connectionBuffer)
	defer s.hub.Unregister(sub)
	s.logger.Debug("socket connected", "user_id", user.ID)

	_ = wsjson.Write(ctx, conn, Event{Type: "ready", Data: map[string]string{"userId": user.ID.String()}})

	// The client never sends anything meaningful; reading detects disconnects.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			s.logger.Debug("socket disconnected", "user_id", user.ID)
			return
		case evt, ok := <-sub.Events():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, evt)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}
