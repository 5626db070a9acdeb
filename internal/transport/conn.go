package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

var (
	ErrConnClosed    = errors.New("transport: connection closed")
	ErrSendQueueFull = errors.New("transport: send queue full")
)

const writeTimeout = 10 * time.Second

// Conn wraps one device's WebSocket connection. Outbound messages go
// through a buffered queue drained by a single writer goroutine, so
// Send never blocks the coordinator and per-sender order is preserved.
type Conn struct {
	id    string
	ws    *websocket.Conn
	codec *protocol.Codec

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, queueSize int) *Conn {
	return &Conn{
		id:     id,
		ws:     ws,
		codec:  protocol.NewCodec(),
		sendCh: make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

func (c *Conn) DeviceID() string {
	return c.id
}

// Send enqueues a message for delivery. A full queue means the device
// is not draining its socket; the caller treats that as a failed
// delivery rather than waiting.
func (c *Conn) Send(msg protocol.Message) error {
	data, err := c.codec.EncodeToBytes(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
