// Package session owns interview connectivity, phase, and all
// interview-scoped mutable state. The controller translates inbound channel
// events into state updates and exposes a narrow action surface.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/metrics"
	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultMaxRetries     = 3
	defaultBackoff        = 2 * time.Second
)

// ErrNotConnected is returned by Emit when the channel is down.
var ErrNotConnected = errors.New("channel not connected")

// Transport is the realtime channel to the interview backend. Channel is the
// production implementation; tests substitute fakes.
type Transport interface {
	Connect(ctx context.Context) error
	Emit(event string, v any) error
	Connected() bool
	Close()
}

// Channel is a websocket client to the interview backend with bounded
// automatic reconnection. Inbound events are dispatched strictly in arrival
// order on a single reader goroutine.
type Channel struct {
	url    string
	dialer *websocket.Dialer
	log    *zap.Logger

	handler func(models.Event)
	onDown  func(error)

	connectTimeout time.Duration
	maxRetries     int
	backoff        time.Duration

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	gen       uint64
	connected bool
	closed    bool
}

func NewChannel(url string, log *zap.Logger) *Channel {
	return &Channel{
		url:            url,
		dialer:         websocket.DefaultDialer,
		log:            log,
		connectTimeout: defaultConnectTimeout,
		maxRetries:     defaultMaxRetries,
		backoff:        defaultBackoff,
	}
}

// SetHandler registers the inbound event handler. Must be called before
// Connect.
func (c *Channel) SetHandler(fn func(models.Event)) { c.handler = fn }

// SetOnDown registers the callback invoked after reconnection is exhausted.
func (c *Channel) SetOnDown(fn func(error)) { c.onDown = fn }

// SetRetryPolicy overrides reconnection bounds (tests shrink them).
func (c *Channel) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	c.maxRetries = maxRetries
	c.backoff = backoff
}

func (c *Channel) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("connect interview backend: %w", err)
	}

	c.mu.Lock()
	old := c.conn
	c.gen++
	gen := c.gen
	c.conn = conn
	c.connected = true
	c.closed = false
	c.mu.Unlock()

	// A repeat Connect supersedes the previous socket; closing it makes its
	// read loop exit, and the generation check keeps that exit from touching
	// the new connection.
	if old != nil {
		_ = old.Close()
	}

	go c.readLoop(conn, gen)
	return nil
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Channel) Emit(event string, v any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	evt, err := models.NewEvent(event, v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(evt); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		var evt models.Event
		if err := conn.ReadJSON(&evt); err != nil {
			c.handleReadFailure(gen, err)
			return
		}
		if c.handler != nil {
			c.handler(evt)
		}
	}
}

// handleReadFailure attempts a bounded reconnect with fixed backoff. After
// exhaustion the session stays down until a manual Connect. A failure from a
// superseded connection's read loop is ignored.
func (c *Channel) handleReadFailure(gen uint64, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	c.log.Warn("channel read failed, reconnecting", zap.Error(cause))

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		metrics.ChannelReconnect()
		time.Sleep(c.backoff)

		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.connectTimeout)
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		cancel()
		if err != nil {
			c.log.Warn("reconnect attempt failed",
				zap.Int("attempt", attempt), zap.Int("max", c.maxRetries), zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.gen++
		gen = c.gen
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		c.log.Info("channel reconnected", zap.Int("attempt", attempt))
		go c.readLoop(conn, gen)
		return
	}

	if c.onDown != nil {
		c.onDown(cause)
	}
}
