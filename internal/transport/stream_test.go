package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStreamDialer_ReadsFramesUntilTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/abc123", r.URL.Path)
		assert.Equal(t, "req-9", r.Header.Get(HeaderRequestID))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"progress":20,"text":"자막 추출 중","method":"youtube_transcript_api"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"summary":"done","method":"youtube_transcript_api"}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	d := NewStreamDialer(time.Second, 0)
	stream, err := d.Open(context.Background(), wsURL(srv, "/ws/abc123"), "req-9")
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Next()
	require.NoError(t, err)
	p, ok := first.Percent()
	require.True(t, ok)
	assert.Equal(t, 20, p)
	assert.Equal(t, "자막 추출 중", first.Text)
	assert.False(t, first.Terminal())

	second, err := stream.Next()
	require.NoError(t, err)
	assert.True(t, second.Terminal())
	assert.Equal(t, "done", second.Summary)
}

func TestStreamDialer_UnexpectedCloseReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"progress":10,"text":"start"}`))
		_ = conn.Close()
	}))
	defer srv.Close()

	stream, err := NewStreamDialer(time.Second, 0).Open(context.Background(), wsURL(srv, "/ws/x"), "")
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	require.NoError(t, err)

	_, err = stream.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamClosed))
}

func TestStreamDialer_CancelUnblocksNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewStreamDialer(time.Second, 0).Open(ctx, wsURL(srv, "/ws/x"), "")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after cancellation")
	}
}

func TestStreamDialer_IdleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	stream, err := NewStreamDialer(time.Second, 50*time.Millisecond).Open(context.Background(), wsURL(srv, "/ws/x"), "")
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStreamDialer_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewStreamDialer(time.Second, 0).Open(context.Background(), wsURL(srv, "/ws/x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
