package sockets

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("closed connection")

type Connection interface {
	Dial(ctx context.Context, url string, header http.Header) error
	Send(msg Msg) error
	io.Closer
}

type Conn struct {
	mu             sync.Mutex
	ws             *websocket.Conn
	sslSkipVerify  bool
	closed         bool
	pingInterval   time.Duration
	maxMessageSize int64
	onError        func(err error)
	onMessage      func([]byte, Connection)
	onConnected    func(Connection)
	done           chan struct{}
}

func New(opts ...func(*Conn)) Connection {
	c := &Conn{closed: true}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Msg is the message structure.
type Msg struct {
	Body []byte
}

// Closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *Conn) Send(msg Msg) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	err := c.ws.WriteMessage(websocket.TextMessage, msg.Body)
	c.mu.Unlock()
	if err != nil {
		c.fail(err)
		return err
	}
	return nil
}

func (c *Conn) Dial(ctx context.Context, url string, header http.Header) error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: c.sslSkipVerify,
		},
	}
	conn, res, err := dialer.DialContext(ctx, url, header)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		return err
	}
	if c.maxMessageSize > 0 {
		conn.SetReadLimit(c.maxMessageSize)
	}

	c.mu.Lock()
	c.ws = conn
	c.closed = false
	c.done = make(chan struct{})
	c.mu.Unlock()

	if c.onConnected != nil {
		c.onConnected(c)
	}
	go c.readLoop(conn)
	c.setupPing()
	return nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg, c)
		}
	}
}

// fail closes the socket and reports err unless the caller already closed it.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	_ = c.ws.Close()
	c.mu.Unlock()

	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Conn) setupPing() {
	if c.pingInterval <= 0 {
		return
	}
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	ticker := time.NewTicker(c.pingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				c.fail(err)
				return
			}
		}
	}()
}
