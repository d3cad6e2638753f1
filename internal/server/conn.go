package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"
)

const writeTimeout = 10 * time.Second

// conn wraps a websocket with a bounded outbound queue and a writer
// goroutine, so broadcasts never block on a slow client. On overflow the
// oldest queued frame is dropped and the connection is marked unhealthy.
type conn struct {
	ws  *websocket.Conn
	out chan any

	mu        sync.Mutex
	closed    bool
	unhealthy bool
}

func newConn(ws *websocket.Conn, queueSize int) *conn {
	return &conn{ws: ws, out: make(chan any, queueSize)}
}

// Send queues a frame without blocking. It reports false only when the
// connection is closed; overflow drops the oldest frame instead.
func (c *conn) Send(v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for {
		select {
		case c.out <- v:
			return true
		default:
		}
		select {
		case <-c.out:
			if !c.unhealthy {
				c.unhealthy = true
				klog.Warningf("Outbound queue overflow for %s, dropping oldest frames", c.RemoteAddr())
			}
		default:
		}
	}
}

func (c *conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Unhealthy reports whether this connection has ever overflowed its queue.
func (c *conn) Unhealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unhealthy
}

// close stops Send and the writer goroutine. Safe to call more than once.
func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.out)
	_ = c.ws.Close()
}

// writeLoop drains the outbound queue onto the socket. It exits when close
// drops the queue or a write fails; the read loop notices via the socket.
func (c *conn) writeLoop() {
	for v := range c.out {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteJSON(v); err != nil {
			klog.V(1).Infof("Write to %s failed: %v", c.RemoteAddr(), err)
			_ = c.ws.Close()
			return
		}
	}
}
