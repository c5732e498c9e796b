package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/example/jewelry/internal/models"
)

type fakeAuth struct {
	tokens map[string]*models.User
}

func (f fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if u, ok := f.tokens[token]; ok {
		return u, nil
	}
	return nil, errors.New("invalid token")
}

func newTestServer(t *testing.T, user *models.User) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(hub, fakeAuth{tokens: map[string]*models.User{"good": user}}, logger, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return hub, ts
}

func TestServerRejectsMissingOrBadCredential(t *testing.T) {
	user := &models.User{}
	user.ID = uuid.New()
	_, ts := newTestServer(t, user)

	for _, url := range []string{ts.URL + "/ws", ts.URL + "/ws?token=bad"} {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("get %s: %v", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", url, resp.StatusCode)
		}
	}
}

func TestServerDeliversEmittedEvents(t *testing.T) {
	user := &models.User{}
	user.ID = uuid.New()
	hub, ts := newTestServer(t, user)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer good"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ready Event
	if err := wsjson.Read(ctx, conn, &ready); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	if ready.Type != "ready" {
		t.Fatalf("expected ready event, got %q", ready.Type)
	}
	if got := hub.Connections(user.ID); got != 1 {
		t.Fatalf("expected 1 registered connection, got %d", got)
	}

	if err := hub.Emit(ctx, user.ID, "notification", map[string]string{"title": "New catalog"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	var evt struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != "notification" || evt.Data["title"] != "New catalog" {
		t.Fatalf("unexpected event %+v", evt)
	}
}
