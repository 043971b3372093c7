package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"perplbot/pkg/utils"
)

// TradeInput is the shared input for write and dry-run tools.
type TradeInput struct {
	Market   string  `json:"market" jsonschema_description:"Market symbol, e.g. BTC-PERP"`
	Long     bool    `json:"long" jsonschema_description:"true for long, false for short"`
	Size     float64 `json:"size" jsonschema_description:"Position size in base units"`
	Price    float64 `json:"price,omitempty" jsonschema_description:"Limit price; omit for a market order"`
	Leverage float64 `json:"leverage" jsonschema_description:"Leverage, e.g. 10 for 10x"`
}

type marketInput struct {
	Market string `json:"market" jsonschema_description:"Market symbol"`
}

type openOrdersInput struct {
	Market string `json:"market,omitempty" jsonschema_description:"Optional market filter"`
}

type orderBookInput struct {
	Market string `json:"market" jsonschema_description:"Market symbol"`
	Depth  int    `json:"depth,omitempty" jsonschema_description:"Levels per side, default 10"`
}

type recentTradesInput struct {
	Market string `json:"market" jsonschema_description:"Market symbol"`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Number of 1-minute candles, default 20"`
}

type debugTxInput struct {
	Hash string `json:"hash" jsonschema_description:"Transaction hash"`
}

type simulateStrategyInput struct {
	Market   string         `json:"market" jsonschema_description:"Market symbol"`
	Strategy string         `json:"strategy" jsonschema_description:"grid or mm"`
	Size     float64        `json:"size" jsonschema_description:"Total size committed"`
	Leverage float64        `json:"leverage" jsonschema_description:"Leverage"`
	Params   map[string]any `json:"params,omitempty" jsonschema_description:"Strategy parameters"`
}

type closePositionInput struct {
	Market string  `json:"market" jsonschema_description:"Market symbol"`
	Size   float64 `json:"size,omitempty" jsonschema_description:"Size to close; omit for the whole position"`
}

type cancelOrderInput struct {
	Market  string `json:"market" jsonschema_description:"Market symbol"`
	OrderId int64  `json:"order_id" jsonschema_description:"Contract order id from open_orders"`
}

type emptyInput struct{}

// Tool is one entry of the fixed catalogue the model may call. Write
// tools must only be invoked after an explicit user confirmation; the
// system prompt carries that contract.
type Tool struct {
	Name        string
	Description string
	InputSchema any
	Write       bool
	Run         func(ctx context.Context, input json.RawMessage) (any, error)
}

func mustSchema[T any]() any {
	schema, err := utils.GenerateSchema[T]()
	if err != nil {
		panic(err)
	}
	return schema
}

func decode[T any](input json.RawMessage) (T, error) {
	var v T
	if len(input) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return v, fmt.Errorf("fail to decode tool input: %w", err)
	}
	return v, nil
}

// Catalogue builds the tool set over a Service.
func Catalogue(svc Service) []Tool {
	return []Tool{
		{
			Name:        "account_summary",
			Description: "Account balance, locked margin, available margin and total equity.",
			InputSchema: mustSchema[emptyInput](),
			Run: func(ctx context.Context, _ json.RawMessage) (any, error) {
				return svc.AccountSummary(ctx)
			},
		},
		{
			Name:        "positions",
			Description: "Open positions with entry price, size, collateral and unrealized PnL.",
			InputSchema: mustSchema[emptyInput](),
			Run: func(ctx context.Context, _ json.RawMessage) (any, error) {
				return svc.Positions(ctx)
			},
		},
		{
			Name:        "markets",
			Description: "Available perpetual markets with mark price, funding and open interest.",
			InputSchema: mustSchema[emptyInput](),
			Run: func(ctx context.Context, _ json.RawMessage) (any, error) {
				return svc.Markets(ctx)
			},
		},
		{
			Name:        "open_orders",
			Description: "Resting orders, optionally filtered by market. Ids are contract order ids usable with cancel_order.",
			InputSchema: mustSchema[openOrdersInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[openOrdersInput](input)
				if err != nil {
					return nil, err
				}
				return svc.OpenOrders(ctx, in.Market)
			},
		},
		{
			Name:        "funding_info",
			Description: "Current funding rate and next funding time for a market.",
			InputSchema: mustSchema[marketInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[marketInput](input)
				if err != nil {
					return nil, err
				}
				return svc.FundingInfo(ctx, in.Market)
			},
		},
		{
			Name:        "liquidation_analysis",
			Description: "Liquidation price analysis for the open position in a market: closed-form estimate plus fork-verified boundary and divergence.",
			InputSchema: mustSchema[marketInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[marketInput](input)
				if err != nil {
					return nil, err
				}
				return svc.LiquidationAnalysis(ctx, in.Market)
			},
		},
		{
			Name:        "trading_fees",
			Description: "Maker and taker fees for a market.",
			InputSchema: mustSchema[marketInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[marketInput](input)
				if err != nil {
					return nil, err
				}
				return svc.TradingFees(ctx, in.Market)
			},
		},
		{
			Name:        "order_book",
			Description: "Order book for a market, reconstructed from the chain.",
			InputSchema: mustSchema[orderBookInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[orderBookInput](input)
				if err != nil {
					return nil, err
				}
				if in.Depth <= 0 {
					in.Depth = 10
				}
				return svc.OrderBook(ctx, in.Market, in.Depth)
			},
		},
		{
			Name:        "recent_trades",
			Description: "Recent 1-minute candles in a market; individual trades are not returned.",
			InputSchema: mustSchema[recentTradesInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[recentTradesInput](input)
				if err != nil {
					return nil, err
				}
				if in.Limit <= 0 {
					in.Limit = 20
				}
				return svc.RecentTrades(ctx, in.Market, in.Limit)
			},
		},
		{
			Name:        "debug_transaction",
			Description: "Inspect a transaction by hash: status, decoded revert reason if any.",
			InputSchema: mustSchema[debugTxInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[debugTxInput](input)
				if err != nil {
					return nil, err
				}
				return svc.DebugTransaction(ctx, in.Hash)
			},
		},
		{
			Name:        "simulate_strategy",
			Description: "Dry-run a grid or mm ladder: levels, margin and projected fees. No orders are placed.",
			InputSchema: mustSchema[simulateStrategyInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[simulateStrategyInput](input)
				if err != nil {
					return nil, err
				}
				return svc.SimulateStrategy(ctx, in.Market, in.Strategy, in.Size, in.Leverage, in.Params)
			},
		},
		{
			Name:        "dry_run_trade",
			Description: "Check a trade's margin (price x size / leverage) against the available balance and return the order intent that would be submitted. Market limits are not checked. No order is placed.",
			InputSchema: mustSchema[TradeInput](),
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[TradeInput](input)
				if err != nil {
					return nil, err
				}
				return svc.DryRunTrade(ctx, in)
			},
		},
		{
			Name:        "open_position",
			Description: "Open a position. Requires explicit user confirmation before calling.",
			InputSchema: mustSchema[TradeInput](),
			Write:       true,
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[TradeInput](input)
				if err != nil {
					return nil, err
				}
				return svc.OpenPosition(ctx, in)
			},
		},
		{
			Name:        "close_position",
			Description: "Close (part of) a position. Requires explicit user confirmation before calling.",
			InputSchema: mustSchema[closePositionInput](),
			Write:       true,
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[closePositionInput](input)
				if err != nil {
					return nil, err
				}
				return svc.ClosePosition(ctx, in.Market, in.Size)
			},
		},
		{
			Name:        "cancel_order",
			Description: "Cancel a resting order by contract order id. Requires explicit user confirmation before calling.",
			InputSchema: mustSchema[cancelOrderInput](),
			Write:       true,
			Run: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[cancelOrderInput](input)
				if err != nil {
					return nil, err
				}
				return svc.CancelOrder(ctx, in.Market, in.OrderId)
			},
		},
	}
}
