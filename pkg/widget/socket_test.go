package widget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/eventbus"
	"github.com/go-go-golems/parley/pkg/socket"
)

func fastPolicy(maxRetries int) socket.Policy {
	return socket.Policy{InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2, MaxRetries: maxRetries}
}

func newPushChannel(t *testing.T, url string, policy socket.Policy) (*socket.Channel, *eventbus.Bus) {
	t.Helper()
	bus, err := eventbus.New()
	require.NoError(t, err)
	ch := socket.NewChannel(url, policy, socket.OnFrame(func(b []byte) {
		_ = bus.PublishFrame(b)
	}))
	return ch, bus
}

func TestPushedFramesReachMessageList(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"presence","message":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_message","message":{"role":"assistant","content":"Welcome back"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ch, bus := newPushChannel(t, "ws"+strings.TrimPrefix(srv.URL, "http"), fastPolicy(3))
	v := &view{}
	c := New(testSession(), &fakeAPI{}, nil, v.bindings(), WithSocket(ch, bus))
	start(t, c)

	require.Eventually(t, func() bool {
		v.mu.Lock()
		defer v.mu.Unlock()
		return len(v.blocks) == 1 && v.blocks[0].Body == "Welcome back"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSocketGivingUpAlertsAndKeepsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	ch, bus := newPushChannel(t, "ws"+strings.TrimPrefix(srv.URL, "http"), fastPolicy(2))
	api := &fakeAPI{}
	v := &view{}
	c := New(testSession(), api, nil, v.bindings(), WithSocket(ch, bus))
	start(t, c)

	require.Eventually(t, func() bool {
		v.mu.Lock()
		defer v.mu.Unlock()
		return len(v.alerts) == 1 && v.alerts[0] == AlertSocketGaveUp
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(3), ch.Dials())

	// the submit worker is still alive
	require.NoError(t, wait(t, c.SendTextMessage(context.Background(), "still here")))
	require.Len(t, api.Calls(), 1)
}
