package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-service/internal/models"
)

const writeWait = 10 * time.Second

// conn wraps a websocket connection behind a write mutex so fan-out pushes
// from concurrent requests never interleave frames.
type conn struct {
	mu   sync.Mutex
	sock *websocket.Conn
}

// Push writes one event frame, bounded by the write deadline.
func (c *conn) Push(event string, payload any) error {
	frame, err := json.Marshal(models.Event{Event: event, Data: payload})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	return c.sock.WriteMessage(websocket.TextMessage, frame)
}

// Close closes the underlying socket.
func (c *conn) Close() error {
	return c.sock.Close()
}
