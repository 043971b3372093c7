// Package api is the REST side of the exchange client: public reference
// data, sign-in-with-wallet session authentication, and paginated
// trading history.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"perplbot/pkg/types"
)

// Session is the authenticated state shared by the REST client and the
// trading websocket. The cookie bundle and the nonce are only valid
// together.
type Session struct {
	Nonce         string
	Cookies       []*http.Cookie
	Authenticated bool
}

// CookieHeader renders the captured cookies for reuse on a websocket
// handshake.
func (s *Session) CookieHeader() string {
	parts := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

type Client struct {
	baseUrl string
	chainId int64
	http    *http.Client
	logger  *log.Entry

	mu      sync.Mutex
	session Session
}

func NewClient(baseUrl string, chainId int64) *Client {
	return &Client{
		baseUrl: strings.TrimRight(baseUrl, "/"),
		chainId: chainId,
		http:    &http.Client{},
		logger:  log.WithFields(log.Fields{"mod": "api", "url": baseUrl}),
	}
}

func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Authenticated
}

// SessionState returns a copy of the current session for the trading
// websocket handshake.
func (c *Client) SessionState() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ClearAuth drops the local session. The caller re-authenticates
// explicitly.
func (c *Client) ClearAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{}
}

// do issues one request. When authed is set the session nonce and cookie
// bundle are attached; without an authenticated session it returns
// ErrUnauthenticated and sends nothing.
func (c *Client) do(ctx context.Context, method, path string, reqBody any, authed bool, isHistory bool) ([]byte, error) {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if authed {
		c.mu.Lock()
		if !c.session.Authenticated {
			c.mu.Unlock()
			return nil, ErrUnauthenticated
		}
		req.Header.Set("X-Auth-Nonce", c.session.Nonce)
		for _, cookie := range c.session.Cookies {
			req.AddCookie(cookie)
		}
		c.mu.Unlock()
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return resBody, nil
	}
	return nil, c.classify(res.StatusCode, resBody, isHistory)
}

func (c *Client) classify(status int, body []byte, isHistory bool) error {
	switch status {
	case http.StatusUnauthorized:
		c.ClearAuth()
		return ErrSessionExpired
	case http.StatusTeapot, http.StatusLocked:
		return ErrAccessRequired
	case http.StatusNotFound:
		if isHistory {
			return errNoData
		}
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return &APIError{Status: status, Body: string(body)}
}

// GetContext fetches unauthenticated protocol metadata: chain, markets
// with decimals and fee schedules, tokens, feature flags.
func (c *Client) GetContext(ctx context.Context) (*ExchangeContext, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/pub/context", nil, false, false)
	if err != nil {
		return nil, err
	}
	var out ExchangeContext
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("fail to decode context: %w", err)
	}
	return &out, nil
}

// GetCandles fetches an unauthenticated OHLCV window.
func (c *Client) GetCandles(ctx context.Context, marketId, resolutionSec, fromMs, toMs int64) ([]types.Candle, error) {
	path := fmt.Sprintf("/v1/market-data/%v/candles/%v/%v-%v", marketId, resolutionSec, fromMs, toMs)
	raw, err := c.do(ctx, http.MethodGet, path, nil, false, false)
	if err != nil {
		return nil, err
	}
	var res candlesResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("fail to decode candles: %w", err)
	}
	candles := make([]types.Candle, 0, len(res.D))
	for _, w := range res.D {
		candles = append(candles, types.Candle{
			Ts: w.T, Open: w.O, Close: w.C, High: w.H, Low: w.L, Volume: w.V, Trades: w.N,
		})
	}
	return candles, nil
}

// GetAnnouncements fetches currently active platform announcements.
func (c *Client) GetAnnouncements(ctx context.Context) ([]Announcement, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/profile/announcements", nil, false, false)
	if err != nil {
		return nil, err
	}
	var res announcementsResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("fail to decode announcements: %w", err)
	}
	return res.Active, nil
}
