package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"forwardtester/src/model"
)

func (f *ExecutionFeed) clientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func waitForClients(t *testing.T, feed *ExecutionFeed, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for feed.clientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers, have %d", want, feed.clientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestExecutionFeedBroadcast(t *testing.T) {
	feed := NewExecutionFeed()
	srv := httptest.NewServer(http.HandlerFunc(feed.handler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForClients(t, feed, 1)

	feed.Notify(&model.ExecutionRecord{
		SessionID: 9,
		LogType:   model.LogTypeInfo,
		Step:      model.StepOutcome,
		Message:   model.OutcomeNoSignal,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got model.ExecutionRecord
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, uint(9), got.SessionID)
	require.Equal(t, model.OutcomeNoSignal, got.Message)
}

func TestExecutionFeedNoSubscribers(t *testing.T) {
	feed := NewExecutionFeed()

	// Must not block or panic with nobody listening.
	feed.Notify(&model.ExecutionRecord{SessionID: 1, Message: "NO_SIGNAL"})
}

func TestExecutionFeedUnsubscribeOnDisconnect(t *testing.T) {
	feed := NewExecutionFeed()
	srv := httptest.NewServer(http.HandlerFunc(feed.handler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	waitForClients(t, feed, 1)
	require.NoError(t, conn.Close())

	// The handler notices the dead connection on its next write.
	deadline := time.Now().Add(2 * time.Second)
	for feed.clientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after disconnect")
		}
		feed.Notify(&model.ExecutionRecord{SessionID: 1, Message: "ping"})
		time.Sleep(10 * time.Millisecond)
	}
}

func TestExecutionFeedDisconnectNoticedWithoutBroadcast(t *testing.T) {
	feed := NewExecutionFeed()
	srv := httptest.NewServer(http.HandlerFunc(feed.handler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	waitForClients(t, feed, 1)
	require.NoError(t, conn.Close())

	// No Notify calls here: the read pump alone must reap the
	// subscriber.
	waitForClients(t, feed, 0)
}
