package websocket

import (
	"errors"
	"io"
	"sync"
	"time"
)

type frame struct {
	kind int
	data []byte
}

// fakeConn replays queued inbound frames and records outbound ones.
// ReadMessage returns io.EOF once the queue is drained.
type fakeConn struct {
	mu sync.Mutex

	remote   string
	writeErr error
	inbound  []frame
	outbound []frame

	closed        bool
	readLimit     int64
	writeDeadline time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{remote: "127.0.0.1:50000"}
}

var errFakeClosed = errors.New("fake connection closed")

func (c *fakeConn) queue(kind int, data string) {
	c.mu.Lock()
	c.inbound = append(c.inbound, frame{kind: kind, data: []byte(data)})
	c.mu.Unlock()
}

func (c *fakeConn) frames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.outbound...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return errFakeClosed
	case c.writeErr != nil:
		return c.writeErr
	}
	c.outbound = append(c.outbound, frame{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, errFakeClosed
	}
	if len(c.inbound) == 0 {
		return 0, nil, io.EOF
	}
	f := c.inbound[0]
	c.inbound = c.inbound[1:]
	return f.kind, f.data, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.writeDeadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetReadLimit(limit int64) {
	c.mu.Lock()
	c.readLimit = limit
	c.mu.Unlock()
}

func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) RemoteAddr() string { return c.remote }
