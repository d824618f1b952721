package core

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/anonchat-server/internal/attachment"
	"github.com/vovakirdan/anonchat-server/internal/store"
	"github.com/vovakirdan/anonchat-server/internal/store/sqlite"
)

var errBoom = errors.New("boom")

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if an event of kind arrives within wait.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
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

func newTestAttachments(t *testing.T) *attachment.LocalStore {
	t.Helper()

	st, err := attachment.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create attachment store: %v", err)
	}
	return st
}

type testEnv struct {
	hub         *Hub
	store       *sqlite.SQLiteStore
	attachments *attachment.LocalStore
	ctx         context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := newTestStore(t)
	att := newTestAttachments(t)
	return newTestEnvWith(t, HubConfig{Identities: st, Messages: st, Attachments: att}, st, att)
}

func newTestEnvWith(t *testing.T, cfg HubConfig, st *sqlite.SQLiteStore, att *attachment.LocalStore) *testEnv {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return &testEnv{hub: NewHub(cfg), store: st, attachments: att, ctx: ctx}
}

// connect starts a Serve task for a new client and disconnects it on cleanup.
func (e *testEnv) connect(t *testing.T, id string) *Client {
	t.Helper()

	c := NewClient(id, 256)
	ctx, cancel := context.WithCancel(e.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.hub.Serve(ctx, c)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		e.hub.Disconnect(c)
	})
	return c
}

func (e *testEnv) register(t *testing.T, c *Client, device string) string {
	t.Helper()

	c.Commands <- &Command{Kind: CommandRegister, DeviceID: device}
	ev := mustEvent(t, c.Events, EventUserRegistered)
	if ev.User == "" {
		t.Fatalf("empty user id for device %s", device)
	}
	return ev.User
}

func (e *testEnv) join(t *testing.T, c *Client, userID, target string) *Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinRoom, SenderID: userID, ReceiverID: target}
	return mustEvent(t, c.Events, EventHistory)
}

// flakyMessages wraps a message store and fails appends on demand.
type flakyMessages struct {
	store.MessageStore
	failAppend atomic.Bool
	failRecent atomic.Bool

	mu      sync.Mutex
	appends int
}

func (f *flakyMessages) Append(ctx context.Context, ev *store.ChatEvent) error {
	f.mu.Lock()
	f.appends++
	f.mu.Unlock()
	if f.failAppend.Load() {
		return errBoom
	}
	return f.MessageStore.Append(ctx, ev)
}

func (f *flakyMessages) RecentByRoom(ctx context.Context, room string, limit int) ([]*store.ChatEvent, error) {
	if f.failRecent.Load() {
		return nil, errBoom
	}
	return f.MessageStore.RecentByRoom(ctx, room, limit)
}

func (f *flakyMessages) appendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

// flakyAttachments wraps an attachment store and fails writes on demand.
type flakyAttachments struct {
	attachment.Store
	failPut atomic.Bool
}

func (f *flakyAttachments) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if f.failPut.Load() {
		return "", errBoom
	}
	return f.Store.Put(ctx, name, r, size, contentType)
}

// brokenIdentities fails every call.
type brokenIdentities struct{}

func (brokenIdentities) GetIdentityByFingerprint(context.Context, string) (*store.Identity, error) {
	return nil, errBoom
}

func (brokenIdentities) CreateIdentity(context.Context, string, string) (*store.Identity, error) {
	return nil, errBoom
}

func (brokenIdentities) CountIdentities(context.Context) (int64, error) {
	return 0, errBoom
}

// gatedIdentities holds lookups until release is closed or ctx ends.
type gatedIdentities struct {
	store.IdentityStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedIdentities) GetIdentityByFingerprint(ctx context.Context, fingerprint string) (*store.Identity, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.IdentityStore.GetIdentityByFingerprint(ctx, fingerprint)
}
