// Package ws implements the exchange's two websocket endpoints: the
// public market-data socket and the session-authenticated trading
// socket. One Client drives one connection; reconnect, resubscription
// and liveness pings are internal.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"perplbot/pkg/api"
)

const (
	handshakeTimeout = 10 * time.Second
	authTimeout      = 10 * time.Second
	pingInterval     = 30 * time.Second
	maxReconnects    = 10
)

// reconnect delays, walked left to right; the last value repeats.
var backoffSchedule = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	16 * time.Second, 32 * time.Second, 60 * time.Second,
}

type Client struct {
	url     string
	chainId int64
	trading bool
	session api.Session

	dialer  websocket.Dialer
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	subs     map[string]int64 // stream -> server sid (0 until confirmed)
	handlers map[string][]func(Event)
	ackCh    map[int64]chan OrderUpdate
	closed   bool
	authed   chan struct{}

	rq    atomic.Int64
	stopC chan struct{}
	doneC chan struct{}

	logger *log.Entry
}

// NewMarketClient builds a client for the unauthenticated market-data
// endpoint.
func NewMarketClient(wsUrl string, chainId int64) *Client {
	return newClient(wsUrl, chainId, false, api.Session{})
}

// NewTradingClient builds a client for the authenticated trading
// endpoint. The session must come from a signed-in REST client; its
// nonce and cookie are presented together on the handshake.
func NewTradingClient(wsUrl string, chainId int64, session api.Session) *Client {
	return newClient(wsUrl, chainId, true, session)
}

func newClient(wsUrl string, chainId int64, trading bool, session api.Session) *Client {
	return &Client{
		url:     wsUrl,
		chainId: chainId,
		trading: trading,
		session: session,
		dialer: websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		subs:     make(map[string]int64),
		handlers: make(map[string][]func(Event)),
		ackCh:    make(map[int64]chan OrderUpdate),
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),
		logger:   log.WithFields(log.Fields{"mod": "ws", "url": wsUrl, "trading": trading}),
	}
}

// On registers a handler for a named event. Handlers must be registered
// before Connect so no message is dropped for lack of one; they run on
// the read loop in receive order.
func (c *Client) On(event string, handler func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *Client) emit(event string, e Event) {
	c.mu.Lock()
	handlers := c.handlers[event]
	c.mu.Unlock()
	e.Type = event
	for _, h := range handlers {
		h(e)
	}
}

// Connect dials the endpoint and starts the read and ping loops. On the
// trading endpoint it also performs the auth handshake and blocks until
// the server confirms it with a wallet snapshot.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return fmt.Errorf("fail to connect %v: %w", c.url, err)
	}

	c.mu.Lock()
	c.authed = make(chan struct{})
	authed := c.authed
	c.mu.Unlock()

	go c.readLoop()
	go c.pingLoop()

	if !c.trading {
		return nil
	}
	if err := c.sendAuth(); err != nil {
		return err
	}
	select {
	case <-authed:
		return nil
	case <-time.After(authTimeout):
		c.Close()
		return fmt.Errorf("fail to authenticate trading socket: no wallet snapshot within %v", authTimeout)
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

func (c *Client) dial(ctx context.Context) error {
	header := http.Header{}
	if c.trading {
		if cookie := c.session.CookieHeader(); cookie != "" {
			header.Set("Cookie", cookie)
		}
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) sendAuth() error {
	return c.writeJSON(authMsg{
		Mt:      mtAuth,
		ChainId: c.chainId,
		Nonce:   c.session.Nonce,
		Ses:     uuid.NewString(),
	})
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("ws: not connected")
	}
	return conn.WriteJSON(v)
}

// Subscribe requests the named streams. Idempotent: streams already
// requested are re-sent, which the server treats as a no-op.
func (c *Client) Subscribe(streams ...string) error {
	c.mu.Lock()
	for _, s := range streams {
		if _, ok := c.subs[s]; !ok {
			c.subs[s] = 0
		}
	}
	c.mu.Unlock()

	entries := make([]subEntry, 0, len(streams))
	for _, s := range streams {
		entries = append(entries, subEntry{Stream: s, Subscribe: true})
	}
	return c.writeJSON(subRequest{Mt: mtSubscribe, Subs: entries})
}

// Sid returns the server-assigned subscription id for a stream, zero if
// unconfirmed.
func (c *Client) Sid(stream string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[stream]
}

// Close shuts the connection down permanently.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.stopC)
	if conn != nil {
		_ = conn.Close()
	}
}

// Done is closed once the client has permanently stopped.
func (c *Client) Done() <-chan struct{} { return c.doneC }

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopC:
			return
		case <-ticker.C:
			if err := c.writeJSON(pingMsg{Mt: mtPing, T: time.Now().UnixMilli()}); err != nil {
				c.logger.Debugf("fail to send ping: %v", err)
			}
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.doneC)
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil || c.isClosed() {
			return
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsCloseError(err, closeCodeAuthExpired) {
				c.logger.Warn("trading session expired, not reconnecting")
				c.emit(EventAuthExpired, Event{})
				c.Close()
				return
			}
			c.logger.Errorf("fail to read message (reconnecting): %v", err)
			if !c.reconnect() {
				c.emit(EventFatal, Event{})
				c.Close()
				return
			}
			continue
		}
		c.dispatch(msg)
	}
}

// reconnect retries the dial over the backoff schedule, re-sends auth on
// the trading endpoint, then re-issues every named subscription in a
// single batched request.
func (c *Client) reconnect() bool {
	for attempt := 0; attempt < maxReconnects; attempt++ {
		delay := backoffSchedule[min(attempt, len(backoffSchedule)-1)]
		select {
		case <-c.stopC:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Errorf("fail to reconnect (attempt %v/%v): %v", attempt+1, maxReconnects, err)
			continue
		}

		if c.trading {
			if err := c.sendAuth(); err != nil {
				c.logger.Errorf("fail to re-auth after reconnect: %v", err)
				continue
			}
		}
		if err := c.resubscribe(); err != nil {
			c.logger.Errorf("fail to resubscribe after reconnect: %v", err)
			continue
		}
		c.logger.Info("reconnected and resubscribed")
		return true
	}
	c.logger.Errorf("reconnect attempts exhausted after %v tries", maxReconnects)
	return false
}

func (c *Client) resubscribe() error {
	c.mu.Lock()
	streams := make([]string, 0, len(c.subs))
	for s := range c.subs {
		streams = append(streams, s)
	}
	c.mu.Unlock()
	if len(streams) == 0 {
		return nil
	}
	sort.Strings(streams)

	entries := make([]subEntry, 0, len(streams))
	for _, s := range streams {
		entries = append(entries, subEntry{Stream: s, Subscribe: true})
	}
	return c.writeJSON(subRequest{Mt: mtSubscribe, Subs: entries})
}

// dispatch routes one frame by its mt code. Unknown codes are dropped
// for forward compatibility.
func (c *Client) dispatch(msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil || f.Mt == nil {
		c.logger.Warnf("found malformed message: %v", string(msg))
		return
	}

	switch *f.Mt {
	case mtPong:
	case mtSubscribeRes:
		var res subResponse
		if err := json.Unmarshal(msg, &res); err != nil {
			c.logger.Warnf("fail to decode subscription response: %v", err)
			return
		}
		c.mu.Lock()
		for _, s := range res.Subs {
			c.subs[s.Stream] = s.Sid
		}
		c.mu.Unlock()
	case mtMarketState:
		c.emit(EventMarketState, Event{Mt: *f.Mt, Data: msg})
	case mtBookSnapshot:
		c.emit(EventOrderBook, Event{Mt: *f.Mt, Snapshot: true, Data: msg})
	case mtBookUpdate:
		c.emit(EventOrderBook, Event{Mt: *f.Mt, Data: msg})
	case mtTradesSnapshot:
		c.emit(EventTrades, Event{Mt: *f.Mt, Snapshot: true, Data: msg})
	case mtTradesUpdate:
		c.emit(EventTrades, Event{Mt: *f.Mt, Data: msg})
	case mtWalletSnapshot:
		c.mu.Lock()
		if c.authed != nil {
			select {
			case <-c.authed:
			default:
				close(c.authed)
			}
		}
		c.mu.Unlock()
		c.emit(EventWallet, Event{Mt: *f.Mt, Snapshot: true, Data: msg})
	case mtOrdersSnapshot:
		c.emit(EventOrders, Event{Mt: *f.Mt, Snapshot: true, Data: msg})
	case mtOrdersUpdate:
		c.notifyAcks(msg)
		c.emit(EventOrders, Event{Mt: *f.Mt, Data: msg})
	case mtFillsUpdate:
		c.emit(EventFills, Event{Mt: *f.Mt, Data: msg})
	case mtPositionsSnapshot:
		c.emit(EventPositions, Event{Mt: *f.Mt, Snapshot: true, Data: msg})
	case mtPositionsUpdate:
		c.emit(EventPositions, Event{Mt: *f.Mt, Data: msg})
	case mtHeartbeat:
		c.emit(EventHeartbeat, Event{Mt: *f.Mt, Data: msg})
	default:
		// unknown mt: drop
	}
}

func (c *Client) notifyAcks(msg []byte) {
	var of ordersFrame
	if err := json.Unmarshal(msg, &of); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range of.Orders {
		if o.Rq == 0 {
			continue
		}
		if ch, ok := c.ackCh[o.Rq]; ok {
			select {
			case ch <- o:
			default:
			}
		}
	}
}
