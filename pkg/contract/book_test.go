package contract

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"perplbot/pkg/types"
)

// fakeBackend answers getVolumeAtBookPrice / getNextPriceBelowWithOrders
// from in-memory maps and counts walker calls.
type fakeBackend struct {
	volumes map[int64]int64 // ons -> volume LNS
	next    map[int64]int64 // ons -> next ons below with orders
	calls   int
}

func (f *fakeBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{1}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.answer(call.Data)
}

var testABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(exchangeABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func (f *fakeBackend) answer(data []byte) ([]byte, error) {
	method, err := testABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	f.calls++
	switch method.Name {
	case "getVolumeAtBookPrice":
		ons := args[1].(*big.Int).Int64()
		return method.Outputs.Pack(big.NewInt(f.volumes[ons]))
	case "getNextPriceBelowWithOrders":
		ons := args[1].(*big.Int).Int64()
		return method.Outputs.Pack(big.NewInt(f.next[ons]))
	}
	return nil, nil
}

// transactor surface, unused by read tests
func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return nil, nil
}
func (f *fakeBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{1}, nil
}
func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}
func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}
func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}
func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}
func (f *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return nil
}

func testPerp(maxBid, maxAsk int64) *types.Perpetual {
	return &types.Perpetual{
		Id:             16,
		PriceDecimals:  1,
		LotDecimals:    4,
		BasePricePNS:   big.NewInt(900000),
		MaxBidPriceONS: big.NewInt(maxBid),
		MaxAskPriceONS: big.NewInt(maxAsk),
		TotalOrders:    12,
	}
}

func TestWalkBookEmpty(t *testing.T) {
	f := &fakeBackend{}
	c, err := New(f, Options{})
	require.NoError(t, err)

	view, err := c.WalkBook(context.Background(), testPerp(0, 0), 5)
	require.NoError(t, err)
	require.Empty(t, view.Bids)
	require.Empty(t, view.Asks)
	require.Nil(t, view.SpreadPNS)
	require.Equal(t, int64(12), view.TotalOrders)
	require.Equal(t, 0, f.calls, "empty book must not issue walker RPCs")
}

func TestWalkBookAskTrim(t *testing.T) {
	// five ask levels walked worst-first; depth 3 keeps those nearest
	// the spread, ascending
	f := &fakeBackend{
		volumes: map[int64]int64{
			60000: 10000, 58000: 10000, 55000: 10000, 53000: 10000, 51000: 10000,
			49000: 5000, 48000: 4000,
		},
		next: map[int64]int64{
			60000: 58000, 58000: 55000, 55000: 53000, 53000: 51000, 51000: 0,
			49000: 48000, 48000: 0,
		},
	}
	c, err := New(f, Options{})
	require.NoError(t, err)

	perp := testPerp(49000, 60000)
	view, err := c.WalkBook(context.Background(), perp, 3)
	require.NoError(t, err)

	require.Len(t, view.Asks, 3)
	require.Equal(t, int64(51000), view.Asks[0].PriceONS.Int64())
	require.Equal(t, int64(53000), view.Asks[1].PriceONS.Int64())
	require.Equal(t, int64(55000), view.Asks[2].PriceONS.Int64())
	require.Equal(t, int64(951000), view.Asks[0].PricePNS.Int64())

	require.Len(t, view.Bids, 2)
	require.Equal(t, int64(49000), view.Bids[0].PriceONS.Int64())
	require.Equal(t, int64(48000), view.Bids[1].PriceONS.Int64())

	// spread = best ask - best bid
	require.Equal(t, int64(2000), view.SpreadPNS.Int64())
}

func TestTradingSelectors(t *testing.T) {
	c, err := New(&fakeBackend{}, Options{})
	require.NoError(t, err)
	sels := c.TradingSelectors()
	require.Len(t, sels, 5)
	for _, s := range sels {
		require.NotEqual(t, [4]byte{}, s)
	}
}
