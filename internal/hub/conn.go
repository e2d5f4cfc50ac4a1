package hub

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/pairplay/sync-server/pkg/eventdto"
)

const writeTimeout = 5 * time.Second

// conn wraps one client WebSocket. It implements rooms.Sender; writes are
// serialized by the mutex because wsjson.Write is not safe for concurrent
// use on a single connection.
type conn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex

	// Set by the join handler; read only from this connection's own read
	// loop afterwards.
	userID   string
	coupleID string
	name     string
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(event string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, eventdto.Frame{Event: event, Data: payload})
}
