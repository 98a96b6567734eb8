package socket

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/webitel/actor-runtime/internal/domain/message"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReactorConnectAndDataEvents(t *testing.T) {
	delivered := make(chan message.Message, 8)
	r := New(Config{
		Deliver: func(handle uint32, msg message.Message) bool {
			delivered <- msg
			return true
		},
	}, discardLogger())

	srv := httptest.NewServer(r.server.Handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/42"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	more, err := r.Poll(ctx)
	require.NoError(t, err)
	require.True(t, more)

	kind, _, _, err := DecodeMessage(<-delivered)
	require.NoError(t, err)
	require.Equal(t, KindConnect, kind)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))

	more, err = r.Poll(ctx)
	require.NoError(t, err)
	require.True(t, more)

	kind, _, data, err := DecodeMessage(<-delivered)
	require.NoError(t, err)
	require.Equal(t, KindData, kind)
	require.Equal(t, []byte("hi"), data)
}

func TestPollReturnsFalseOnCancel(t *testing.T) {
	r := New(Config{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	more, err := r.Poll(ctx)
	require.NoError(t, err)
	require.False(t, more)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "DATA", KindData.String())
	require.Equal(t, "UNKNOWN", Kind(99).String())
}
