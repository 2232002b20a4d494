package router

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-trader/src/alpaca"
)

func hubSize() int {
	wsHub.mu.Lock()
	defer wsHub.mu.Unlock()
	return len(wsHub.conns)
}

func TestOrdersWsClientCleanup(t *testing.T) {
	r, _ := setupTestRouter(alpaca.NewMockBroker(), nil)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/orders"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hubSize() == 1 }, time.Second, 10*time.Millisecond)

	// the hub entry is reclaimed as soon as the client goes away, not on the
	// next published event
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hubSize() == 0 }, time.Second, 10*time.Millisecond)
}
