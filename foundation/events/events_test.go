package events_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Send(t *testing.T) {
	evts := events.New()

	ch, err := evts.Acquire("a")
	require.NoError(t, err)

	assert.Equal(t, 1, evts.Send("viewer: block mined"))
	assert.Equal(t, "viewer: block mined", <-ch)

	require.NoError(t, evts.Release("a"))
	assert.Error(t, evts.Release("a"))
	assert.Equal(t, 0, evts.Send("dropped"))

	evts.Shutdown()
	_, err = evts.Acquire("b")
	assert.True(t, errors.Is(err, events.ErrShutdown))
}

func Test_Stream(t *testing.T) {
	evts := events.New()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		evts.Stream(context.Background(), conn, "client", time.Second)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return evts.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	evts.Send("viewer: MINING: completed")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "viewer: MINING: completed", string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return evts.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}
