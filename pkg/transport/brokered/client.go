package brokered

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/relay"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/gorilla/websocket"
)

const (
	helloWait = 10 * time.Second
	writeWait = 10 * time.Second
)

var (
	ErrNotConnected = errors.New("relay is not connected")
	ErrIdTaken      = errors.New("relay id is taken")
)

// Client keeps a connection to the relay and redials it when it drops.
// The id assigned on the first connection is kept for the later ones.
type Client struct {
	addr    string
	handler func(relay.Message)
	log     *logger.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	id      string
	idReady chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Connect starts dialing the relay in the background.
// Messages from other peers go to the handler, one at a time.
func Connect(addr string, handler func(relay.Message), log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		addr:    addr,
		handler: handler,
		log:     log,
		idReady: make(chan struct{}),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// Identity waits for the relay to assign an id.
// A client that lost its id to another peer fails with ErrIdTaken.
func (c *Client) Identity(ctx context.Context) (string, error) {
	select {
	case <-c.idReady:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.id, nil
	case <-c.done:
		if c.err != nil {
			return "", c.err
		}
		return "", transport.ErrClosed
	case <-ctx.Done():
		return "", fmt.Errorf("%w: relay id", transport.ErrTimeout)
	}
}

func (c *Client) Send(m relay.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, m.Marshal())
}

func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 0
		var conn *websocket.Conn
		err := backoff.Retry(func() (err error) {
			conn, err = c.dial(ctx)
			switch {
			case errors.Is(err, ErrIdTaken):
				return backoff.Permanent(err)
			case err != nil && ctx.Err() == nil:
				c.log.Warn().Err(err).Msg("relay dial")
			}
			return err
		}, backoff.WithContext(b, ctx))
		if errors.Is(err, ErrIdTaken) {
			c.log.Error().Err(err).Msg("relay id is held by another peer, giving up")
			c.err = err
		}
		if err != nil {
			return
		}
		c.read(conn)
		if ctx.Err() != nil {
			return
		}
		c.log.Info().Msg("relay connection lost, redialing")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.addr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	id := c.id
	c.mu.Unlock()
	if id != "" {
		q := u.Query()
		q.Set(relay.IdParam, id)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(helloWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})
	hello, err := relay.Parse(data)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	switch {
	case hello.Type == relay.TypeIdTaken:
		_ = conn.Close()
		return nil, ErrIdTaken
	case hello.Type != relay.TypeOpen || hello.Dst == "":
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected relay hello %q", hello.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		_ = conn.Close()
		return nil, ctx.Err()
	}
	c.conn = conn
	if c.id == "" {
		c.id = hello.Dst
		close(c.idReady)
		c.log.Info().Str("id", c.id).Msg("relay id assigned")
	}
	return conn, nil
}

func (c *Client) read(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		m, err := relay.Parse(data)
		if err != nil {
			c.log.Warn().Msg("malformed relay message")
			continue
		}
		c.handler(m)
	}
}
