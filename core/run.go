package core

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"perplbot/pkg/ws"
)

// Run connects the websocket side: the public market-data socket, and —
// when a REST session exists — the authenticated trading socket feeding
// the state tracker. Trading-socket failure is not fatal: writes route
// through the contract path regardless.
func Run(ctx context.Context, app *App) error {
	log.Info("🦿 Running...")
	cfg := app.Config

	app.Market = ws.NewMarketClient(cfg.WsUrl+"/ws/v1/market-data", cfg.ChainId)
	if err := app.Market.Connect(ctx); err != nil {
		return fmt.Errorf("fail to connect market-data socket: %w", err)
	}
	if err := app.Market.Subscribe(
		fmt.Sprintf("market-state@%v", cfg.ChainId),
		fmt.Sprintf("heartbeat@%v", cfg.ChainId),
	); err != nil {
		return fmt.Errorf("fail to subscribe market streams: %w", err)
	}

	if !app.Rest.IsAuthenticated() {
		log.Warn("no api session; trading socket disabled, orders go on-chain")
		return nil
	}

	app.Trading = ws.NewTradingClient(cfg.WsUrl+"/ws/v1/trading", cfg.ChainId, app.Rest.SessionState())
	app.Trading.On(ws.EventAuthExpired, func(ws.Event) {
		// the session is gone on the server side too
		app.Rest.ClearAuth()
		log.Warn("trading session expired; re-authenticate to resume websocket trading")
	})
	// handlers registered before connect so the first snapshots land
	app.Tracker.Attach(app.Trading)
	if err := app.Trading.Connect(ctx); err != nil {
		log.Warnf("fail to connect trading socket, orders go on-chain: %v", err)
		app.Trading = nil
	}
	return nil
}

// Shutdown closes the sockets.
func (a *App) Shutdown() {
	if a.Market != nil {
		a.Market.Close()
	}
	if a.Trading != nil {
		a.Trading.Close()
	}
	if a.Eth != nil {
		a.Eth.Close()
	}
}
