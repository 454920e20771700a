package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/einherij/cockpit/pkg/telemetry"
)

// State of the backend websocket connection.
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

type Config struct {
	BackendURL        string
	Reconnect         bool
	ReconnectInterval time.Duration
}

// Channel owns the single websocket connection to the drone backend. It keeps
// only the latest telemetry snapshot and video frame, fans both out to
// subscribers and reports connection state changes. There is exactly one
// writer to the latest-value slots, the read loop of the current connection.
type Channel struct {
	backendURL        string
	reconnect         bool
	reconnectInterval time.Duration
	dialer            *websocket.Dialer

	mux      sync.Mutex
	conn     *websocket.Conn
	wantOpen bool

	state          atomic.Int32
	snapshot       atomic.Pointer[telemetry.Snapshot]
	frame          atomic.Pointer[telemetry.VideoFrame]
	decodeFailures atomic.Uint64

	subMux sync.Mutex
	subs   []*Subscription
}

func New(cfg Config) *Channel {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	return &Channel{
		backendURL:        cfg.BackendURL,
		reconnect:         cfg.Reconnect,
		reconnectInterval: cfg.ReconnectInterval,
		dialer:            websocket.DefaultDialer,
	}
}

// WebsocketURL derives the backend websocket address from its HTTP base URL.
func WebsocketURL(backendURL string) string {
	return "ws" + strings.TrimPrefix(strings.TrimSuffix(backendURL, "/"), "http") + "/ws"
}

// Open dials the backend websocket and starts reading from it. Opening while
// already open replaces the live connection, it never leaves two sockets up.
// A fresh connection starts with empty snapshot and frame slots.
func (c *Channel) Open(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, WebsocketURL(c.backendURL), nil)
	if err != nil {
		return fmt.Errorf("dialing backend websocket: %w", err)
	}

	c.mux.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.wantOpen = true
	// cleared under the mutex, a replaced read loop cannot repopulate the
	// slots afterwards (stores check conn ownership under the same mutex)
	c.snapshot.Store(nil)
	c.frame.Store(nil)
	c.mux.Unlock()

	c.setState(Connected)
	go c.readLoop(conn)
	return nil
}

// Close shuts the active connection down if there is one.
func (c *Channel) Close() {
	c.mux.Lock()
	conn := c.conn
	c.conn = nil
	c.wantOpen = false
	c.mux.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()
	c.setState(Disconnected)
}

// Run keeps the channel alive as an application runner. With reconnection
// disabled it only waits for shutdown; with it enabled it redials whenever an
// opened channel drops, until Close is called explicitly.
func (c *Channel) Run(ctx context.Context) {
	logrus.Warnf("started telemetry channel")
	defer logrus.Warnf("stopped telemetry channel")

	if !c.reconnect {
		<-ctx.Done()
		c.Close()
		return
	}

	timer := time.NewTimer(c.reconnectInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-timer.C:
			c.mux.Lock()
			redial := c.wantOpen && c.conn == nil
			c.mux.Unlock()
			if redial {
				if err := c.Open(ctx); err != nil {
					logrus.Error(fmt.Errorf("reconnecting telemetry channel: %w", err))
				}
			}
			timer.Reset(c.reconnectInterval)
		}
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.connClosed(conn, err)
			return
		}
		c.handleMessage(conn, payload)
	}
}

func (c *Channel) connClosed(conn *websocket.Conn, err error) {
	c.mux.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	wantOpen := c.wantOpen
	c.mux.Unlock()

	if !current {
		// already replaced by a newer connection
		return
	}
	if wantOpen {
		logrus.Error(fmt.Errorf("backend websocket closed: %w", err))
	}
	c.setState(Disconnected)
}

func (c *Channel) handleMessage(conn *websocket.Conn, payload []byte) {
	var msg telemetry.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.decodeFailure(fmt.Errorf("decoding envelope: %w", err))
		return
	}
	switch msg.Type {
	case telemetry.MTStateUpdate:
		var snap telemetry.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			c.decodeFailure(fmt.Errorf("decoding state update: %w", err))
			return
		}
		snap.ReceivedAt = time.Now()
		c.storeSnapshot(conn, &snap)
	case telemetry.MTVideoFrame:
		frame, err := telemetry.DecodeVideoFrame(msg.Data)
		if err != nil {
			c.decodeFailure(fmt.Errorf("decoding video frame: %w", err))
			return
		}
		frame.ReceivedAt = time.Now()
		c.storeFrame(conn, frame)
	case telemetry.MTUndefined:
		c.decodeFailure(fmt.Errorf("envelope missing type"))
	default:
		// unknown tags are not an error, the backend may be newer than us
	}
}

// storeSnapshot writes the slot under the connection mutex, so a read loop
// that Open already replaced cannot land a stale value after the slots were
// cleared for the new session.
func (c *Channel) storeSnapshot(conn *websocket.Conn, snap *telemetry.Snapshot) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.conn != conn {
		return
	}
	c.snapshot.Store(snap)
	c.publishSnapshot(snap)
}

func (c *Channel) storeFrame(conn *websocket.Conn, frame *telemetry.VideoFrame) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.conn != conn {
		return
	}
	c.frame.Store(frame)
	c.publishFrame(frame)
}

func (c *Channel) decodeFailure(err error) {
	c.decodeFailures.Add(1)
	logrus.Warnf("dropping telemetry message: %v", err)
}

// Snapshot returns the latest telemetry snapshot, nil if none was received.
func (c *Channel) Snapshot() *telemetry.Snapshot { return c.snapshot.Load() }

// Frame returns the latest video frame, nil if none was received.
func (c *Channel) Frame() *telemetry.VideoFrame { return c.frame.Load() }

func (c *Channel) State() State { return State(c.state.Load()) }

// DecodeFailures reports how many inbound messages were dropped as malformed.
func (c *Channel) DecodeFailures() uint64 { return c.decodeFailures.Load() }

func (c *Channel) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.subMux.Lock()
	subs := append([]*Subscription(nil), c.subs...)
	c.subMux.Unlock()
	for _, sub := range subs {
		select {
		case sub.states <- s:
		default:
		}
	}
}

func (c *Channel) publishSnapshot(snap *telemetry.Snapshot) {
	c.subMux.Lock()
	subs := append([]*Subscription(nil), c.subs...)
	c.subMux.Unlock()
	for _, sub := range subs {
		select {
		case sub.snapshots <- snap:
		default:
		}
	}
}

func (c *Channel) publishFrame(frame *telemetry.VideoFrame) {
	c.subMux.Lock()
	subs := append([]*Subscription(nil), c.subs...)
	c.subMux.Unlock()
	for _, sub := range subs {
		select {
		case sub.frames <- frame:
		default:
		}
	}
}
