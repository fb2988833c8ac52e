package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowList(t *testing.T) {
	list := AllowList{"http://localhost:8080", "https://Example.com/"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:8080", true},
		{"https://example.com", true},
		{"HTTPS://EXAMPLE.COM", true},
		{"http://localhost:9090", false},
		{"http://example.com", false},
		{"ws://localhost:8080", false},
		{"", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, list.IsAllowedOrigin(tt.origin))
		})
	}

	assert.True(t, AllowList{"*"}.IsAllowedOrigin("https://anything.dev"))
	assert.False(t, AllowList{"*"}.IsAllowedOrigin("file:///etc/passwd"))
}

func startHub(t *testing.T, handler Handler) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(AllowList{"http://allowed.test"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("key"), handler)
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, hub.Shutdown(ctx))
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server, key, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?key=" + key
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: http.Header{"Origin": {origin}}})
}

func TestServeRepliesAndBroadcasts(t *testing.T) {
	hub, srv := startHub(t, func(_ context.Context, c *Client, msg Message) (*Message, error) {
		if msg.Event == "quiet" {
			return nil, nil
		}
		return &Message{Type: TypeRender, ID: msg.ID, HTML: c.Key() + ":" + msg.Value}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, _, err := dial(t, ctx, srv, "a", "http://allowed.test")
	require.NoError(t, err)
	defer a.Close(websocket.StatusNormalClosure, "")
	b, _, err := dial(t, ctx, srv, "b", "http://allowed.test")
	require.NoError(t, err)
	defer b.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, a, Message{Type: TypeEvent, Event: "quiet"}))
	require.NoError(t, wsjson.Write(ctx, a, Message{Type: TypeEvent, ID: "m1", Value: "x"}))
	var reply Message
	require.NoError(t, wsjson.Read(ctx, a, &reply))
	assert.Equal(t, Message{Type: TypeRender, ID: "m1", HTML: "a:x"}, reply)

	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast(Message{Type: TypeReload})
	for _, conn := range []*websocket.Conn{a, b} {
		var msg Message
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		assert.Equal(t, TypeReload, msg.Type)
	}

	require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerErrorsBecomeErrorMessages(t *testing.T) {
	_, srv := startHub(t, func(context.Context, *Client, Message) (*Message, error) {
		return nil, assert.AnError
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := dial(t, ctx, srv, "k", "http://allowed.test")
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, Message{Type: TypeEvent, ID: "m3"}))
	var reply Message
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "m3", reply.ID)
	assert.Equal(t, assert.AnError.Error(), reply.Error)
}

func TestOriginRejected(t *testing.T) {
	_, srv := startHub(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, origin := range []string{"http://evil.test", ""} {
		_, resp, err := dial(t, ctx, srv, "k", origin)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	hub := NewHub(AllowList{"*"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "k", nil)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := dial(t, ctx, srv, "k", "http://any.test")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	readErr := make(chan error, 1)
	go func() {
		var msg Message
		readErr <- wsjson.Read(ctx, conn, &msg)
	}()

	require.NoError(t, hub.Shutdown(ctx))
	require.NoError(t, hub.Shutdown(ctx))
	assert.Equal(t, 0, hub.Clients())

	err = <-readErr
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	// broadcasting after shutdown must not block
	hub.Broadcast(Message{Type: TypeReload})
}
