package router

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"perplbot/pkg/api"
	"perplbot/pkg/codec"
	"perplbot/pkg/types"
)

type fakeChain struct {
	perp       *types.Perpetual
	positions  map[int64]*types.Position
	openOrders []types.Order

	execCalls     int
	batchCalls    int
	batchErr      error
	positionReads int
}

func (f *fakeChain) GetPerpetualInfo(ctx context.Context, perpId int64) (*types.Perpetual, error) {
	return f.perp, nil
}

func (f *fakeChain) GetPosition(ctx context.Context, perpId, accountId int64) (*types.Position, *big.Int, bool, error) {
	f.positionReads++
	if pos, ok := f.positions[perpId]; ok {
		return pos, big.NewInt(950000), true, nil
	}
	return &types.Position{PerpId: perpId, Type: types.PositionNone}, big.NewInt(950000), true, nil
}

func (f *fakeChain) GetOpenOrders(ctx context.Context, perpId, accountId int64) ([]types.Order, error) {
	return f.openOrders, nil
}

func (f *fakeChain) WalkBook(ctx context.Context, perp *types.Perpetual, depth int) (*types.BookView, error) {
	return &types.BookView{TotalOrders: perp.TotalOrders}, nil
}

func (f *fakeChain) GetTakerFee(ctx context.Context) (*big.Int, error) { return big.NewInt(50), nil }
func (f *fakeChain) GetMakerFee(ctx context.Context) (*big.Int, error) { return big.NewInt(20), nil }

func (f *fakeChain) ExecOrder(ctx context.Context, desc *codec.OrderDescriptor) (*ethtypes.Transaction, error) {
	f.execCalls++
	return ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: uint64(f.execCalls)}), nil
}

func (f *fakeChain) ExecOrders(ctx context.Context, descs []*codec.OrderDescriptor, revertOnFail bool) (*ethtypes.Transaction, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: 99}), nil
}

type fakeAPI struct {
	authed       bool
	positions    []api.HistoryPosition
	positionsErr error
	calls        int
}

func (f *fakeAPI) IsAuthenticated() bool { return f.authed }

func (f *fakeAPI) GetAllPositionHistory(ctx context.Context, maxPages int) ([]api.HistoryPosition, error) {
	f.calls++
	return f.positions, f.positionsErr
}

func (f *fakeAPI) GetAllFills(ctx context.Context, maxPages int) ([]api.HistoryFill, error) {
	return nil, nil
}

func (f *fakeAPI) GetAllOrderHistory(ctx context.Context, maxPages int) ([]api.HistoryOrder, error) {
	return nil, nil
}

func (f *fakeAPI) GetAllAccountHistory(ctx context.Context, maxPages int) ([]api.HistoryAccountEvent, error) {
	return nil, nil
}

func (f *fakeAPI) GetCandles(ctx context.Context, marketId, resolutionSec, fromMs, toMs int64) ([]types.Candle, error) {
	return nil, nil
}

func TestGetPositionsPolicy(t *testing.T) {
	openRec := api.HistoryPosition{
		ApiId: "api-pos-1", MarketId: 16, Type: 1, Status: "open",
		EntryPNS: "950000", LotLNS: "10000", DepositCNS: "10000000000", PnlCNS: "-5000000",
	}
	closedRec := api.HistoryPosition{
		ApiId: "api-pos-2", MarketId: 17, Type: 2, Status: "closed",
		EntryPNS: "1", LotLNS: "1", DepositCNS: "1", PnlCNS: "0",
	}

	t.Run("api preferred when authenticated", func(t *testing.T) {
		chain := &fakeChain{}
		rest := &fakeAPI{authed: true, positions: []api.HistoryPosition{openRec, closedRec}}
		r := New(chain, rest, true)

		positions, err := r.GetPositions(context.Background(), 100, []int64{16, 17})
		require.NoError(t, err)
		require.Len(t, positions, 1, "closed records filtered out")
		require.Equal(t, int64(16), positions[0].PerpId)
		require.Zero(t, positions[0].Id, "api ids must not leak as contract ids")
		require.Equal(t, 0, chain.positionReads)
	})

	t.Run("contract fallback on api failure", func(t *testing.T) {
		chain := &fakeChain{positions: map[int64]*types.Position{
			16: {Id: 7, PerpId: 16, Type: types.PositionLong, LotLNS: big.NewInt(1)},
		}}
		rest := &fakeAPI{authed: true, positionsErr: errors.New("boom")}
		r := New(chain, rest, true)

		positions, err := r.GetPositions(context.Background(), 100, []int64{16, 17})
		require.NoError(t, err)
		require.Len(t, positions, 1)
		require.Equal(t, int64(7), positions[0].Id)
		require.Equal(t, 2, chain.positionReads)
	})

	t.Run("contract when unauthenticated", func(t *testing.T) {
		chain := &fakeChain{}
		rest := &fakeAPI{authed: false}
		r := New(chain, rest, true)

		_, err := r.GetPositions(context.Background(), 100, []int64{16})
		require.NoError(t, err)
		require.Equal(t, 0, rest.calls)
		require.Equal(t, 1, chain.positionReads)
	})
}

func TestGetOpenOrdersContractOnly(t *testing.T) {
	chain := &fakeChain{openOrders: []types.Order{{Id: 4242, PerpId: 16}}}
	rest := &fakeAPI{authed: true}
	r := New(chain, rest, true)

	orders, err := r.GetOpenOrders(context.Background(), 16, 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, int64(4242), orders[0].Id)
	require.Equal(t, 0, rest.calls, "open orders never touch the api")
}

func TestSubmitOrdersBatchFallback(t *testing.T) {
	t.Run("batch path succeeds", func(t *testing.T) {
		chain := &fakeChain{}
		r := New(chain, &fakeAPI{}, false)

		ins := []OrderIntent{
			{PerpId: 16, Type: types.OrderOpenLong, PricePNS: big.NewInt(1), LotLNS: big.NewInt(1), LeverageHdt: 100, LastBlock: 1},
			{PerpId: 16, Type: types.OrderOpenShort, PricePNS: big.NewInt(2), LotLNS: big.NewInt(1), LeverageHdt: 100, LastBlock: 1},
		}
		_, err := r.SubmitOrders(context.Background(), ins, true)
		require.NoError(t, err)
		require.Equal(t, 1, chain.batchCalls)
		require.Equal(t, 0, chain.execCalls)
	})

	t.Run("batch revert falls back to singles", func(t *testing.T) {
		chain := &fakeChain{batchErr: errors.New("execution reverted")}
		r := New(chain, &fakeAPI{}, false)

		ins := []OrderIntent{
			{PerpId: 16, Type: types.OrderOpenLong, PricePNS: big.NewInt(1), LotLNS: big.NewInt(1), LeverageHdt: 100, LastBlock: 1},
			{PerpId: 16, Type: types.OrderOpenShort, PricePNS: big.NewInt(2), LotLNS: big.NewInt(1), LeverageHdt: 100, LastBlock: 1},
		}
		_, err := r.SubmitOrders(context.Background(), ins, true)
		require.NoError(t, err)
		require.Equal(t, 1, chain.batchCalls)
		require.Equal(t, 2, chain.execCalls)
	})
}

func TestMarketIntentIsIOC(t *testing.T) {
	d := descriptorFromIntent(OrderIntent{
		PerpId: 16, Type: types.OrderOpenLong, LotLNS: big.NewInt(1000),
		LeverageHdt: 1000, LastBlock: 50000,
	})
	require.True(t, d.ImmediateOrCancel)
	require.Nil(t, d.PricePNS)

	limit := descriptorFromIntent(OrderIntent{
		PerpId: 16, Type: types.OrderOpenLong, PricePNS: big.NewInt(500000),
		LotLNS: big.NewInt(1000), LeverageHdt: 1000, LastBlock: 50000,
	})
	require.False(t, limit.ImmediateOrCancel)
}

func TestCloseIntentUsesSentinelLeverage(t *testing.T) {
	d := descriptorFromIntent(OrderIntent{
		PerpId: 16, Type: types.OrderCloseLong, LotLNS: big.NewInt(1000),
		LeverageHdt: 1000, LastBlock: 50000,
	})
	require.Equal(t, uint64(codec.CloseLeverageHdths), d.LeverageHdt)
}
