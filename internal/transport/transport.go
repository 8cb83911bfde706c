// Package transport ingests level-2 order book snapshots from a
// single venue's WebSocket feed and hands each parsed Snapshot to the
// simulator. Adapted from the teacher's WSReconnectManager
// (internal/exchange/ws_reconnect.go): a read pump, a ping pump, and
// an exponential-backoff reconnect loop, simplified to a single public
// feed with no auth or subscription-replay requirement, and built on
// pkg/retry instead of hand-rolled backoff math.
package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"costsim/internal/book"
	"costsim/pkg/logging"
	"costsim/pkg/retry"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Config configures the client's connection and keep-alive behavior.
type Config struct {
	URL              string
	ReconnectDelay   time.Duration
	MaxReconnectWait time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	MaxRetries       int
}

// ConnectionState mirrors the teacher's WSConnectionState enum.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SnapshotHandler is called once per successfully decoded Snapshot.
type SnapshotHandler func(book.Snapshot)

// Client connects to a single venue's L2 stream and feeds parsed
// snapshots to a SnapshotHandler. When an established connection
// fails (read or ping error) it redials with exponential backoff; a
// failed initial dial in Connect is not retried.
type Client struct {
	cfg      Config
	onData   SnapshotHandler
	exchange string
	symbol   string

	conn   *websocket.Conn
	connMu sync.RWMutex

	state int32 // atomic ConnectionState

	closeChan chan struct{}
	closeOnce sync.Once

	messageCount int64 // atomic

	log *logging.Logger
}

// New builds a Client for exchange/symbol that calls onData for every
// decoded snapshot. Connect must be called to start ingest.
func New(cfg Config, exchange, symbol string, onData SnapshotHandler) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxReconnectWait <= 0 {
		cfg.MaxReconnectWait = 16 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	return &Client{
		cfg:       cfg,
		onData:    onData,
		exchange:  exchange,
		symbol:    symbol,
		closeChan: make(chan struct{}),
		log:       logging.L().WithComponent("transport").WithExchange(exchange).WithSymbol(symbol),
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&c.state))
}

// Connect dials the venue and starts the read/ping pumps. On failure
// it returns the dial error without retrying; automatic reconnection
// only kicks in after a connection that was once established drops.
func (c *Client) Connect(ctx context.Context) error {
	atomic.StoreInt32(&c.state, int32(StateConnecting))

	if err := c.dial(ctx); err != nil {
		atomic.StoreInt32(&c.state, int32(StateDisconnected))
		return err
	}

	atomic.StoreInt32(&c.state, int32(StateConnected))
	go c.readPump()
	go c.pingPump()

	c.log.Info("connected", logging.String("url", c.cfg.URL))
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("transport: dial error: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

func (c *Client) readPump() {
	defer c.handleDisconnect(nil)

	for {
		select {
		case <-c.closeChan:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}

		var snap book.Snapshot
		if err := jsonAPI.Unmarshal(message, &snap); err != nil {
			c.log.Error("failed to decode snapshot", logging.Err(err))
			continue
		}

		atomic.AddInt64(&c.messageCount, 1)
		if c.onData != nil {
			c.onData(snap)
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil || c.State() != StateConnected {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(c.cfg.ReadTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn("ping failed", logging.Err(err))
				c.handleDisconnect(err)
				return
			}
		}
	}
}

func (c *Client) handleDisconnect(err error) {
	select {
	case <-c.closeChan:
		return
	default:
	}

	state := c.State()
	if state == StateReconnecting || state == StateClosed {
		return
	}
	atomic.StoreInt32(&c.state, int32(StateReconnecting))

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if err != nil {
		c.log.Warn("disconnected", logging.Err(err))
	}

	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	cfg := retry.Config{
		MaxRetries:   c.cfg.MaxRetries,
		InitialDelay: c.cfg.ReconnectDelay,
		MaxDelay:     c.cfg.MaxReconnectWait,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		RetryIf: func(err error) bool {
			_, permanent := err.(*retry.PermanentError)
			return !permanent
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.log.Info("reconnecting",
				logging.Int("attempt", attempt),
				logging.Float64("delay_seconds", delay.Seconds()))
		},
	}

	err := retry.Do(context.Background(), func() error {
		select {
		case <-c.closeChan:
			return retry.Permanent(fmt.Errorf("transport: client closed"))
		default:
		}
		return c.dial(context.Background())
	}, cfg)

	if err != nil {
		c.log.Error("giving up on reconnect", logging.Err(err))
		atomic.StoreInt32(&c.state, int32(StateDisconnected))
		return
	}

	atomic.StoreInt32(&c.state, int32(StateConnected))
	go c.readPump()
	go c.pingPump()
	c.log.Info("reconnected")
}

// Close shuts down the client and its connection. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
	atomic.StoreInt32(&c.state, int32(StateClosed))

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// MessageCount returns how many snapshots have been decoded.
func (c *Client) MessageCount() int64 {
	return atomic.LoadInt64(&c.messageCount)
}
