package router

import (
	"context"
	"fmt"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"perplbot/pkg/codec"
	"perplbot/pkg/types"
)

// OrderIntent is one open/close/cancel request routed to the contract.
// PricePNS nil means a market order (immediate-or-cancel, max matches
// bounded).
type OrderIntent struct {
	PerpId      int64
	Type        types.OrderType
	OrderId     int64 // cancels only
	PricePNS    *big.Int
	LotLNS      *big.Int
	LeverageHdt int64
	Flags       types.OrderFlags
	ExpiryBlock int64
	LastBlock   int64
	AmountCNS   *big.Int
}

const marketOrderMaxMatches = 16

func descriptorFromIntent(in OrderIntent) *codec.OrderDescriptor {
	d := &codec.OrderDescriptor{
		PerpId:            uint64(in.PerpId),
		OrderType:         in.Type,
		OrderId:           uint64(in.OrderId),
		PricePNS:          in.PricePNS,
		LotLNS:            in.LotLNS,
		ExpiryBlock:       uint64(in.ExpiryBlock),
		PostOnly:          in.Flags&types.FlagPostOnly != 0,
		FillOrKill:        in.Flags&types.FlagFillOrKill != 0,
		ImmediateOrCancel: in.Flags&types.FlagImmediateOrCancel != 0,
		MaxMatches:        marketOrderMaxMatches,
		LeverageHdt:       uint64(in.LeverageHdt),
		LastExecBlock:     uint64(in.LastBlock),
		AmountCNS:         in.AmountCNS,
	}
	switch in.Type {
	case types.OrderCloseLong, types.OrderCloseShort:
		d.LeverageHdt = codec.CloseLeverageHdths
	}
	if in.PricePNS == nil {
		d.ImmediateOrCancel = true
	}
	return d
}

// SubmitOrder routes an order intent to the contract. Writes never go
// through the API: the resulting order id must be authoritative.
func (r *Router) SubmitOrder(ctx context.Context, in OrderIntent) (*ethtypes.Transaction, error) {
	return r.chain.ExecOrder(ctx, descriptorFromIntent(in))
}

// SubmitOrders routes a batch. If the batch entry point reverts (it may
// not be callable by user accounts on every deployment) the descriptors
// are submitted sequentially as singles and the last transaction is
// returned.
func (r *Router) SubmitOrders(ctx context.Context, ins []OrderIntent, revertOnFail bool) (*ethtypes.Transaction, error) {
	descs := make([]*codec.OrderDescriptor, 0, len(ins))
	for _, in := range ins {
		descs = append(descs, descriptorFromIntent(in))
	}
	tx, err := r.chain.ExecOrders(ctx, descs, revertOnFail)
	if err == nil {
		return tx, nil
	}
	r.logger.Warnf("fail to submit batch, falling back to sequential singles: %v", err)

	var last *ethtypes.Transaction
	for i, d := range descs {
		tx, err := r.chain.ExecOrder(ctx, d)
		if err != nil {
			return last, fmt.Errorf("fail to submit order %v/%v: %w", i+1, len(descs), err)
		}
		last = tx
	}
	return last, nil
}

// CancelOrder cancels a contract order id.
func (r *Router) CancelOrder(ctx context.Context, perpId, orderId, lastBlock int64) (*ethtypes.Transaction, error) {
	return r.SubmitOrder(ctx, OrderIntent{
		PerpId:    perpId,
		Type:      types.OrderCancel,
		OrderId:   orderId,
		LastBlock: lastBlock,
	})
}
