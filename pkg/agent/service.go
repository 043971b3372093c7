package agent

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"perplbot/pkg/api"
	"perplbot/pkg/codec"
	"perplbot/pkg/liqsim"
	"perplbot/pkg/router"
	"perplbot/pkg/strategy"
	"perplbot/pkg/tracker"
	"perplbot/pkg/types"
)

// Service is the trading surface the tool catalogue dispatches to.
type Service interface {
	AccountSummary(ctx context.Context) (any, error)
	Positions(ctx context.Context) (any, error)
	Markets(ctx context.Context) (any, error)
	OpenOrders(ctx context.Context, market string) (any, error)
	FundingInfo(ctx context.Context, market string) (any, error)
	LiquidationAnalysis(ctx context.Context, market string) (any, error)
	TradingFees(ctx context.Context, market string) (any, error)
	OrderBook(ctx context.Context, market string, depth int) (any, error)
	RecentTrades(ctx context.Context, market string, limit int) (any, error)
	DebugTransaction(ctx context.Context, hash string) (any, error)
	SimulateStrategy(ctx context.Context, market, strat string, size, leverage float64, params map[string]any) (any, error)
	DryRunTrade(ctx context.Context, in TradeInput) (any, error)
	OpenPosition(ctx context.Context, in TradeInput) (any, error)
	ClosePosition(ctx context.Context, market string, size float64) (any, error)
	CancelOrder(ctx context.Context, market string, orderId int64) (any, error)
}

// Market metadata the service resolves symbols against, sourced from
// the REST context at startup.
type MarketMeta struct {
	Id            int64
	Symbol        string
	PriceDecimals uint8
	LotDecimals   uint8
}

// CoreService implements Service over the hybrid router, the state
// tracker and the liquidation simulator.
type CoreService struct {
	Router    *router.Router
	Tracker   *tracker.Tracker
	Simulator *liqsim.Simulator
	Rest      *api.Client

	AccountId   int64
	Markets_    map[string]MarketMeta // keyed by symbol
	LastBlockFn func(ctx context.Context) (int64, error)
	DebugTxFn   func(ctx context.Context, hash string) (any, error)
}

func nowMs() int64 { return time.Now().UnixMilli() }

func (s *CoreService) DebugTransaction(ctx context.Context, hash string) (any, error) {
	if s.DebugTxFn == nil {
		return nil, fmt.Errorf("transaction inspection not configured")
	}
	return s.DebugTxFn(ctx, hash)
}

func (s *CoreService) market(symbol string) (MarketMeta, error) {
	m, ok := s.Markets_[symbol]
	if !ok {
		return MarketMeta{}, fmt.Errorf("unknown market %q", symbol)
	}
	return m, nil
}

func (s *CoreService) AccountSummary(ctx context.Context) (any, error) {
	balance, locked, available := s.Tracker.Balance()
	return map[string]any{
		"balance":   balance,
		"locked":    locked,
		"available": available,
		"equity":    codec.CNSToAmount(s.Tracker.TotalEquityCNS()),
		"_report":   fmt.Sprintf("Balance $%.2f, available $%.2f", balance, available),
	}, nil
}

func (s *CoreService) Positions(ctx context.Context) (any, error) {
	perpIds := make([]int64, 0, len(s.Markets_))
	for _, m := range s.Markets_ {
		perpIds = append(perpIds, m.Id)
	}
	positions, err := s.Router.GetPositions(ctx, s.AccountId, perpIds)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(positions))
	for _, p := range positions {
		meta, ok := s.metaById(p.PerpId)
		if !ok {
			continue
		}
		side := "long"
		if p.Type == types.PositionShort {
			side = "short"
		}
		out = append(out, map[string]any{
			"market":     meta.Symbol,
			"side":       side,
			"size":       codec.LNSToLot(p.LotLNS, meta.LotDecimals),
			"entry":      codec.PNSToPrice(p.EntryPricePNS, meta.PriceDecimals),
			"collateral": codec.CNSToAmount(p.DepositCNS),
			"pnl":        codec.CNSToAmount(p.PnlCNS),
		})
	}
	return out, nil
}

func (s *CoreService) metaById(perpId int64) (MarketMeta, bool) {
	for _, m := range s.Markets_ {
		if m.Id == perpId {
			return m, true
		}
	}
	return MarketMeta{}, false
}

func (s *CoreService) Markets(ctx context.Context) (any, error) {
	out := make([]map[string]any, 0, len(s.Markets_))
	for _, m := range s.Markets_ {
		perp, err := s.Router.GetPerpetualInfo(ctx, m.Id)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"market":      m.Symbol,
			"mark":        codec.PNSToPrice(perp.MarkPNS, m.PriceDecimals),
			"oracle":      codec.PNSToPrice(perp.OraclePNS, m.PriceDecimals),
			"funding_pct": codec.FundingRatePct(perp.FundingRatePer100k),
			"oi_long":     codec.LNSToLot(perp.OpenInterestLongLNS, m.LotDecimals),
			"oi_short":    codec.LNSToLot(perp.OpenInterestShortLNS, m.LotDecimals),
			"paused":      perp.Paused,
		})
	}
	return out, nil
}

func (s *CoreService) OpenOrders(ctx context.Context, market string) (any, error) {
	metas := make([]MarketMeta, 0, len(s.Markets_))
	if market != "" {
		m, err := s.market(market)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	} else {
		for _, m := range s.Markets_ {
			metas = append(metas, m)
		}
	}

	out := []map[string]any{}
	for _, m := range metas {
		orders, err := s.Router.GetOpenOrders(ctx, m.Id, s.AccountId)
		if err != nil {
			return nil, err
		}
		for _, o := range orders {
			out = append(out, map[string]any{
				"order_id": o.Id,
				"market":   m.Symbol,
				"type":     o.Type,
				"price":    codec.PNSToPrice(o.PricePNS, m.PriceDecimals),
				"size":     codec.LNSToLot(o.LotLNS, m.LotDecimals),
			})
		}
	}
	return out, nil
}

func (s *CoreService) FundingInfo(ctx context.Context, market string) (any, error) {
	m, err := s.market(market)
	if err != nil {
		return nil, err
	}
	perp, err := s.Router.GetPerpetualInfo(ctx, m.Id)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"market":          m.Symbol,
		"funding_pct":     codec.FundingRatePct(perp.FundingRatePer100k),
		"next_funding_ts": perp.NextFundingTs,
	}, nil
}

func (s *CoreService) LiquidationAnalysis(ctx context.Context, market string) (any, error) {
	m, err := s.market(market)
	if err != nil {
		return nil, err
	}
	report, err := s.Simulator.Simulate(ctx, m.Id, s.AccountId)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"market":               m.Symbol,
		"math_price":           report.MathPrice,
		"fork_price":           report.ForkPrice,
		"divergence_abs":       report.DivergenceAbs,
		"divergence_pct":       report.DivergencePct,
		"already_liquidatable": report.AlreadyLiquidatable,
		"_report": fmt.Sprintf("Closed-form liquidation %.2f, fork-verified %.2f (divergence %.3f%%)",
			report.MathPrice, report.ForkPrice, report.DivergencePct),
	}, nil
}

func (s *CoreService) TradingFees(ctx context.Context, market string) (any, error) {
	if _, err := s.market(market); err != nil {
		return nil, err
	}
	taker, maker, err := s.Router.GetFees(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"market":    market,
		"taker_pct": float64(taker.Int64()) / 1000,
		"maker_pct": float64(maker.Int64()) / 1000,
	}, nil
}

func (s *CoreService) OrderBook(ctx context.Context, market string, depth int) (any, error) {
	m, err := s.market(market)
	if err != nil {
		return nil, err
	}
	view, err := s.Router.GetBook(ctx, m.Id, depth)
	if err != nil {
		return nil, err
	}
	level := func(l types.BookLevel) map[string]any {
		return map[string]any{
			"price": codec.PNSToPrice(l.PricePNS, m.PriceDecimals),
			"size":  codec.LNSToLot(l.VolumeLNS, m.LotDecimals),
		}
	}
	bids := make([]map[string]any, 0, len(view.Bids))
	for _, l := range view.Bids {
		bids = append(bids, level(l))
	}
	asks := make([]map[string]any, 0, len(view.Asks))
	for _, l := range view.Asks {
		asks = append(asks, level(l))
	}
	out := map[string]any{
		"market": m.Symbol, "bids": bids, "asks": asks,
		"total_orders": view.TotalOrders,
	}
	if view.SpreadPNS != nil {
		out["spread"] = codec.PNSToPrice(view.SpreadPNS, m.PriceDecimals)
	}
	return out, nil
}

func (s *CoreService) RecentTrades(ctx context.Context, market string, limit int) (any, error) {
	m, err := s.market(market)
	if err != nil {
		return nil, err
	}
	// candles stand in for a trade tape the chain does not keep
	toMs := nowMs()
	candles, err := s.Router.GetCandles(ctx, m.Id, 60, toMs-int64(limit)*60_000, toMs)
	if err != nil {
		return nil, err
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (s *CoreService) SimulateStrategy(ctx context.Context, market, strat string, size, leverage float64, params map[string]any) (any, error) {
	m, err := s.market(market)
	if err != nil {
		return nil, err
	}
	perp, err := s.Router.GetPerpetualInfo(ctx, m.Id)
	if err != nil {
		return nil, err
	}
	_, makerFee, err := s.Router.GetFees(ctx)
	if err != nil {
		return nil, err
	}

	var p strategy.Params
	if v, ok := params["levels"].(float64); ok {
		p.Levels = int(v)
	}
	if v, ok := params["spacing_pct"].(float64); ok {
		p.SpacingPct = v
	}
	if v, ok := params["spread_pct"].(float64); ok {
		p.SpreadPct = v
	}

	toMs := nowMs()
	candles, _ := s.Router.GetCandles(ctx, m.Id, 60, toMs-60*60_000, toMs)

	return strategy.Simulate(strategy.Name(strat), strategy.Input{
		Symbol:      m.Symbol,
		MidPrice:    codec.PNSToPrice(perp.MarkPNS, m.PriceDecimals),
		Size:        size,
		Leverage:    leverage,
		MakerFeePct: float64(makerFee.Int64()) / 100000,
		Candles:     candles,
	}, p)
}

func (s *CoreService) tradeIntent(ctx context.Context, in TradeInput, closing bool) (router.OrderIntent, MarketMeta, error) {
	m, err := s.market(in.Market)
	if err != nil {
		return router.OrderIntent{}, m, err
	}
	lastBlock, err := s.LastBlockFn(ctx)
	if err != nil {
		return router.OrderIntent{}, m, err
	}

	intent := router.OrderIntent{
		PerpId:      m.Id,
		LotLNS:      codec.LotToLNS(in.Size, m.LotDecimals),
		LeverageHdt: codec.LeverageToHdths(in.Leverage),
		LastBlock:   lastBlock,
	}
	if in.Price > 0 {
		intent.PricePNS = codec.PriceToPNS(in.Price, m.PriceDecimals)
	}
	switch {
	case closing && in.Long:
		intent.Type = types.OrderCloseLong
	case closing:
		intent.Type = types.OrderCloseShort
	case in.Long:
		intent.Type = types.OrderOpenLong
	default:
		intent.Type = types.OrderOpenShort
	}
	return intent, m, nil
}

func (s *CoreService) DryRunTrade(ctx context.Context, in TradeInput) (any, error) {
	intent, m, err := s.tradeIntent(ctx, in, false)
	if err != nil {
		return nil, err
	}

	// margin check against the tracked balance
	_, _, available := s.Tracker.Balance()
	price := in.Price
	if price == 0 {
		perp, err := s.Router.GetPerpetualInfo(ctx, m.Id)
		if err != nil {
			return nil, err
		}
		price = codec.PNSToPrice(perp.MarkPNS, m.PriceDecimals)
	}
	leverage := in.Leverage
	if leverage < 1 {
		leverage = 1
	}
	required := price * in.Size / leverage
	ok := required <= available

	return map[string]any{
		"valid":           ok,
		"margin_required": required,
		"available":       available,
		"intent":          intent,
		"_report":         fmt.Sprintf("Dry run: needs $%.2f margin, $%.2f available", required, available),
	}, nil
}

func (s *CoreService) OpenPosition(ctx context.Context, in TradeInput) (any, error) {
	intent, _, err := s.tradeIntent(ctx, in, false)
	if err != nil {
		return nil, err
	}
	tx, err := s.Router.SubmitOrder(ctx, intent)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tx":      tx.Hash().Hex(),
		"_report": fmt.Sprintf("Order submitted: %v", tx.Hash().Hex()),
	}, nil
}

func (s *CoreService) ClosePosition(ctx context.Context, market string, size float64) (any, error) {
	m, err := s.market(market)
	if err != nil {
		return nil, err
	}
	var open *types.Position
	for _, p := range s.Tracker.Positions() {
		if p.PerpId == m.Id {
			pos := p
			open = &pos
			break
		}
	}
	if open == nil {
		return nil, fmt.Errorf("no open position in %v", market)
	}

	lot := new(big.Int).Set(open.LotLNS)
	if size > 0 {
		lot = codec.LotToLNS(size, m.LotDecimals)
		if lot.Cmp(open.LotLNS) > 0 {
			lot.Set(open.LotLNS)
		}
	}
	in := TradeInput{Market: market, Long: open.Type == types.PositionLong}
	intent, _, err := s.tradeIntent(ctx, in, true)
	if err != nil {
		return nil, err
	}
	intent.LotLNS = lot

	tx, err := s.Router.SubmitOrder(ctx, intent)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tx":      tx.Hash().Hex(),
		"_report": fmt.Sprintf("Close submitted: %v", tx.Hash().Hex()),
	}, nil
}

func (s *CoreService) CancelOrder(ctx context.Context, market string, orderId int64) (any, error) {
	m, err := s.market(market)
	if err != nil {
		return nil, err
	}
	lastBlock, err := s.LastBlockFn(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := s.Router.CancelOrder(ctx, m.Id, orderId, lastBlock)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tx":      tx.Hash().Hex(),
		"_report": fmt.Sprintf("Cancel submitted: %v", tx.Hash().Hex()),
	}, nil
}
