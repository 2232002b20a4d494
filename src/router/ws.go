package router

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/eventpubsub"
	"github.com/jiaming2012/webhook-trader/src/models"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var wsHub = struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan *models.OrderEvent
}{
	conns: make(map[*websocket.Conn]chan *models.OrderEvent),
}

// InitOrderFeed subscribes the websocket hub to order events. Called once at
// startup, after eventpubsub.Init.
func InitOrderFeed() error {
	broadcast := func(event *models.OrderEvent) {
		wsHub.mu.Lock()
		defer wsHub.mu.Unlock()

		for _, ch := range wsHub.conns {
			select {
			case ch <- event:
			default:
				// slow consumer, drop the event
			}
		}
	}

	for _, topic := range []string{eventpubsub.OrderReceivedEvent, eventpubsub.OrderExecutedEvent, eventpubsub.OrderRejectedEvent} {
		if err := eventpubsub.Subscribe(topic, broadcast); err != nil {
			return err
		}
	}

	return nil
}

func handleOrdersWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("handleOrdersWs: failed to upgrade connection: %v", err)
		return
	}

	ch := make(chan *models.OrderEvent, 16)

	wsHub.mu.Lock()
	wsHub.conns[conn] = ch
	wsHub.mu.Unlock()

	log.Infof("handleOrdersWs: client %s connected", conn.RemoteAddr())

	defer func() {
		wsHub.mu.Lock()
		delete(wsHub.conns, conn)
		wsHub.mu.Unlock()
		conn.Close()
	}()

	// drain reads so close frames are processed and disconnects are noticed
	// without waiting for the next event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			log.Infof("handleOrdersWs: client %s disconnected", conn.RemoteAddr())
			return
		case event := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				log.Infof("handleOrdersWs: client %s disconnected: %v", conn.RemoteAddr(), err)
				return
			}
		}
	}
}
