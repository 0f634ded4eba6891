package trace

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/trace"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.WriteStep(sampleStep(7)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	var got Step
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, uint64(7), got.Step)
	assert.Equal(t, "SR 0 3", got.Instruction)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubWithoutClients(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 2000; i++ {
		require.NoError(t, hub.WriteStep(sampleStep(uint64(i))))
	}
	// nothing drains the queue, so everything past its capacity is dropped
	assert.Equal(t, uint64(2000-1024), hub.Dropped())
}

func TestHubWriteStepDoesNotWaitOnClients(t *testing.T) {
	hub := NewHub()
	// a client registration or broadcast in progress holds the client lock
	hub.mu.Lock()
	defer hub.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1100; i++ {
			hub.WriteStep(sampleStep(uint64(i)))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WriteStep blocked while the client set was locked")
	}
	assert.Equal(t, uint64(1100-1024), hub.Dropped())
}
