package contract

import (
	"context"
	"math/big"

	"perplbot/pkg/codec"
	"perplbot/pkg/types"
)

// WalkBook reconstructs a depth-limited order book from the contract's
// walk primitives. Both sides are walked downward from their boundary
// offset via getNextPriceBelowWithOrders until it returns zero. For
// bids that visits prices best-first; for asks it visits worst-first, so
// only the last depth levels (the ones nearest the spread) are kept.
// An empty book (both boundary offsets zero) produces no RPC calls.
func (c *Client) WalkBook(ctx context.Context, perp *types.Perpetual, depth int) (*types.BookView, error) {
	view := &types.BookView{TotalOrders: perp.TotalOrders}
	if !perp.HasOrders() {
		return view, nil
	}

	bids, err := c.walkSide(ctx, perp, perp.MaxBidPriceONS)
	if err != nil {
		return nil, err
	}
	if len(bids) > depth {
		bids = bids[:depth]
	}
	view.Bids = bids

	asks, err := c.walkSide(ctx, perp, perp.MaxAskPriceONS)
	if err != nil {
		return nil, err
	}
	if len(asks) > depth {
		asks = asks[len(asks)-depth:]
	}
	// walked high to low; present asks ascending
	for i, j := 0, len(asks)-1; i < j; i, j = i+1, j-1 {
		asks[i], asks[j] = asks[j], asks[i]
	}
	view.Asks = asks

	if len(view.Bids) > 0 && len(view.Asks) > 0 {
		view.SpreadPNS = new(big.Int).Sub(view.Asks[0].PricePNS, view.Bids[0].PricePNS)
	}
	return view, nil
}

func (c *Client) walkSide(ctx context.Context, perp *types.Perpetual, startONS *big.Int) ([]types.BookLevel, error) {
	var levels []types.BookLevel
	cur := new(big.Int).Set(startONS)
	for {
		vol, err := c.GetVolumeAtBookPrice(ctx, perp.Id, cur)
		if err != nil {
			return nil, err
		}
		if vol.Sign() > 0 {
			levels = append(levels, types.BookLevel{
				PriceONS:  new(big.Int).Set(cur),
				PricePNS:  codec.PNSFromONS(cur, perp.BasePricePNS),
				VolumeLNS: vol,
			})
		}
		next, err := c.GetNextPriceBelowWithOrders(ctx, perp.Id, cur)
		if err != nil {
			return nil, err
		}
		if next.Sign() == 0 {
			return levels, nil
		}
		cur = next
	}
}
