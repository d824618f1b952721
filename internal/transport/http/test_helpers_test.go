package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/anonchat-server/internal/attachment"
	"github.com/vovakirdan/anonchat-server/internal/config"
	"github.com/vovakirdan/anonchat-server/internal/core"
	"github.com/vovakirdan/anonchat-server/internal/proto"
	"github.com/vovakirdan/anonchat-server/internal/store/sqlite"
)

type testServer struct {
	*httptest.Server
	hub         *core.Hub
	store       *sqlite.SQLiteStore
	attachments *attachment.LocalStore
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.RateLimitPerMinute = 0
	return cfg
}

func startTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()

	st := createTestStore(t)
	att, err := attachment.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create attachment store: %v", err)
	}

	logger := zerolog.Nop()
	hub := core.NewHub(core.HubConfig{
		Identities:    st,
		Messages:      st,
		Attachments:   att,
		MaxAudioBytes: cfg.MaxAudioBytes,
		Logger:        &logger,
	})

	server := NewServer(hub, st, att, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, hub: hub, store: st, attachments: att}
}

func (ts *testServer) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

type outboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readEvent reads frames until one named event arrives and decodes its data into v.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, v any) {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if frame.Event != event {
			continue
		}
		if v == nil {
			return
		}
		if err := json.Unmarshal(frame.Data, v); err != nil {
			t.Fatalf("unmarshal %s: %v", event, err)
		}
		return
	}
}

// registerAndJoin performs the register and join handshake and returns the user id.
func registerAndJoin(t *testing.T, ctx context.Context, conn *websocket.Conn, device, target string) string {
	t.Helper()

	send(t, ctx, conn, proto.EventRegisterUser, proto.RegisterUserData{DeviceID: device})
	var registered proto.UserRegisteredData
	readEvent(t, ctx, conn, proto.EventUserRegistered, &registered)

	if target == "" {
		target = core.GlobalRoom
	}
	send(t, ctx, conn, proto.EventJoinRoom, proto.JoinRoomData{SenderID: registered.UserID, ReceiverID: target})
	readEvent(t, ctx, conn, proto.EventChatHistory, nil)
	return registered.UserID
}
