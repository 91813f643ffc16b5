package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store/memstore"
	"github.com/evetabi/furbito/internal/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sameSecret signs access and refresh tokens with one key, so only the token
// type tells them apart.
func sameSecret() *service.AuthService {
	cfg := config.Defaults()
	cfg.JWT.AccessSecret = "shared-secret-abcdefghijklmnopqrstuv"
	cfg.JWT.RefreshSecret = cfg.JWT.AccessSecret
	return service.NewAuthService(memstore.New(), &cfg, service.Hooks{})
}

func startHub(t *testing.T, auth ws.Authenticator) (*ws.Hub, string) {
	t.Helper()
	hub := ws.NewHub(auth, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitConnected(t *testing.T, hub *ws.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectedCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("connected = %d, want %d", hub.ConnectedCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func TestServeWs_RefreshTokenConnectsAnonymously(t *testing.T) {
	auth := sameSecret()
	resp, err := auth.Register(context.Background(), service.RegisterRequest{
		Username: "ana", Email: "ana@example.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	hub, url := startHub(t, auth)

	conn := dial(t, url+"?token="+resp.RefreshToken)
	msg := readJSON(t, conn)
	if msg["type"] != string(ws.MsgTypeError) || msg["code"] != "invalid_token" {
		t.Fatalf("first message = %v, want invalid_token error", msg)
	}
	waitConnected(t, hub, 1)

	// The session is anonymous, so only the broadcast reaches it.
	hub.SendToUser(resp.User.ID, map[string]string{"type": "private"})
	hub.BroadcastOdds(uuid.New(), nil)
	if msg := readJSON(t, conn); msg["type"] != string(ws.MsgTypeOddsUpdate) {
		t.Errorf("message = %v, want the odds broadcast", msg)
	}
}

func TestServeWs_AccessTokenReceivesUserMessages(t *testing.T) {
	auth := sameSecret()
	resp, err := auth.Register(context.Background(), service.RegisterRequest{
		Username: "beto", Email: "beto@example.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	hub, url := startHub(t, auth)

	conn := dial(t, url+"?token="+resp.AccessToken)
	waitConnected(t, hub, 1)

	hub.SendToUser(resp.User.ID, map[string]string{"type": "private"})
	if msg := readJSON(t, conn); msg["type"] != "private" {
		t.Errorf("message = %v, want the user's private message", msg)
	}
}
