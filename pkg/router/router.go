// Package router resolves every public operation to the fastest correct
// path. Reads with both an API and a contract path prefer the API when a
// session exists, falling back to the contract on failure. Anything that
// produces or consumes contract order ids is contract-only: ids reported
// by the REST API live in a different namespace and never cross over.
package router

import (
	"context"
	"fmt"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"

	"perplbot/pkg/api"
	"perplbot/pkg/codec"
	"perplbot/pkg/types"
)

// Chain is the contract-client surface the router dispatches to.
type Chain interface {
	GetPerpetualInfo(ctx context.Context, perpId int64) (*types.Perpetual, error)
	GetPosition(ctx context.Context, perpId, accountId int64) (*types.Position, *big.Int, bool, error)
	GetOpenOrders(ctx context.Context, perpId, accountId int64) ([]types.Order, error)
	WalkBook(ctx context.Context, perp *types.Perpetual, depth int) (*types.BookView, error)
	GetTakerFee(ctx context.Context) (*big.Int, error)
	GetMakerFee(ctx context.Context) (*big.Int, error)
	ExecOrder(ctx context.Context, desc *codec.OrderDescriptor) (*ethtypes.Transaction, error)
	ExecOrders(ctx context.Context, descs []*codec.OrderDescriptor, revertOnFail bool) (*ethtypes.Transaction, error)
}

// API is the REST-client surface the router dispatches to.
type API interface {
	IsAuthenticated() bool
	GetAllPositionHistory(ctx context.Context, maxPages int) ([]api.HistoryPosition, error)
	GetAllFills(ctx context.Context, maxPages int) ([]api.HistoryFill, error)
	GetAllOrderHistory(ctx context.Context, maxPages int) ([]api.HistoryOrder, error)
	GetAllAccountHistory(ctx context.Context, maxPages int) ([]api.HistoryAccountEvent, error)
	GetCandles(ctx context.Context, marketId, resolutionSec, fromMs, toMs int64) ([]types.Candle, error)
}

type Router struct {
	chain  Chain
	rest   API
	useApi bool
	logger *log.Entry
}

func New(chain Chain, rest API, useApi bool) *Router {
	return &Router{
		chain:  chain,
		rest:   rest,
		useApi: useApi,
		logger: log.WithFields(log.Fields{"mod": "router"}),
	}
}

// GetPerpetualInfo is contract-only: canonical, no freshness ambiguity.
func (r *Router) GetPerpetualInfo(ctx context.Context, perpId int64) (*types.Perpetual, error) {
	return r.chain.GetPerpetualInfo(ctx, perpId)
}

// GetOpenOrders is contract-only so every returned id is authoritative.
func (r *Router) GetOpenOrders(ctx context.Context, perpId, accountId int64) ([]types.Order, error) {
	return r.chain.GetOpenOrders(ctx, perpId, accountId)
}

// GetBook walks the on-chain book.
func (r *Router) GetBook(ctx context.Context, perpId int64, depth int) (*types.BookView, error) {
	perp, err := r.chain.GetPerpetualInfo(ctx, perpId)
	if err != nil {
		return nil, err
	}
	return r.chain.WalkBook(ctx, perp, depth)
}

// GetPositions reads open positions. With an authenticated session and
// the API preference on, one API call covers every perpetual; on API
// failure (or no session) each perpetual is read from the contract. The
// contract view never carries API position ids.
func (r *Router) GetPositions(ctx context.Context, accountId int64, perpIds []int64) ([]types.Position, error) {
	if r.useApi && r.rest.IsAuthenticated() {
		positions, err := r.positionsFromApi(ctx)
		if err == nil {
			return positions, nil
		}
		r.logger.Warnf("fail to read positions from api, falling back to contract: %v", err)
	}
	return r.positionsFromChain(ctx, accountId, perpIds)
}

func (r *Router) positionsFromApi(ctx context.Context) ([]types.Position, error) {
	records, err := r.rest.GetAllPositionHistory(ctx, 1)
	if err != nil {
		return nil, err
	}
	positions := make([]types.Position, 0, len(records))
	for _, rec := range records {
		if rec.Status != "open" {
			continue
		}
		pos, err := positionFromHistory(rec)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func positionFromHistory(rec api.HistoryPosition) (types.Position, error) {
	entry, ok := new(big.Int).SetString(rec.EntryPNS, 10)
	if !ok {
		return types.Position{}, fmt.Errorf("router: bad entry price %q", rec.EntryPNS)
	}
	lot, ok := new(big.Int).SetString(rec.LotLNS, 10)
	if !ok {
		return types.Position{}, fmt.Errorf("router: bad lot %q", rec.LotLNS)
	}
	deposit, ok := new(big.Int).SetString(rec.DepositCNS, 10)
	if !ok {
		return types.Position{}, fmt.Errorf("router: bad deposit %q", rec.DepositCNS)
	}
	pnl, ok := new(big.Int).SetString(rec.PnlCNS, 10)
	if !ok {
		return types.Position{}, fmt.Errorf("router: bad pnl %q", rec.PnlCNS)
	}
	return types.Position{
		// Id stays zero: API position ids are not contract ids
		PerpId:        rec.MarketId,
		Type:          types.PositionType(rec.Type),
		Status:        types.PositionStatusOpen,
		EntryPricePNS: entry,
		LotLNS:        lot,
		DepositCNS:    deposit,
		PnlCNS:        pnl,
	}, nil
}

func (r *Router) positionsFromChain(ctx context.Context, accountId int64, perpIds []int64) ([]types.Position, error) {
	var positions []types.Position
	for _, perpId := range perpIds {
		pos, _, _, err := r.chain.GetPosition(ctx, perpId, accountId)
		if err != nil {
			return nil, err
		}
		if pos.Type == types.PositionNone {
			continue
		}
		positions = append(positions, *pos)
	}
	return positions, nil
}

// GetMarkPrice is contract-only: liquidation-relevant reads must be
// authoritative.
func (r *Router) GetMarkPrice(ctx context.Context, perpId int64) (mark, oracle *big.Int, err error) {
	perp, err := r.chain.GetPerpetualInfo(ctx, perpId)
	if err != nil {
		return nil, nil, err
	}
	return perp.MarkPNS, perp.OraclePNS, nil
}

// GetFees reads taker/maker fees from the contract.
func (r *Router) GetFees(ctx context.Context) (taker, maker *big.Int, err error) {
	taker, err = r.chain.GetTakerFee(ctx)
	if err != nil {
		return nil, nil, err
	}
	maker, err = r.chain.GetMakerFee(ctx)
	if err != nil {
		return nil, nil, err
	}
	return taker, maker, nil
}

// History reads are API-only; the contract has no history query.

func (r *Router) GetFillHistory(ctx context.Context, maxPages int) ([]api.HistoryFill, error) {
	return r.rest.GetAllFills(ctx, maxPages)
}

func (r *Router) GetOrderHistory(ctx context.Context, maxPages int) ([]api.HistoryOrder, error) {
	return r.rest.GetAllOrderHistory(ctx, maxPages)
}

func (r *Router) GetPositionHistory(ctx context.Context, maxPages int) ([]api.HistoryPosition, error) {
	return r.rest.GetAllPositionHistory(ctx, maxPages)
}

func (r *Router) GetAccountHistory(ctx context.Context, maxPages int) ([]api.HistoryAccountEvent, error) {
	return r.rest.GetAllAccountHistory(ctx, maxPages)
}

func (r *Router) GetCandles(ctx context.Context, marketId, resolutionSec, fromMs, toMs int64) ([]types.Candle, error) {
	return r.rest.GetCandles(ctx, marketId, resolutionSec, fromMs, toMs)
}
