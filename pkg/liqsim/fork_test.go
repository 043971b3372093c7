package liqsim

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"perplbot/pkg/types"
)

// Offsets the fake exchange packs its price word with.
const (
	fakeOracleOff   = 32
	fakeMarkOff     = 64
	fakeMarkTsOff   = 96
	fakeOracleTsOff = 128
)

var (
	decoySlot = common.HexToHash("0x01")
	priceSlot = common.HexToHash("0x02")
)

// fakeFork emulates the slice of anvil the simulator drives: storage,
// snapshot/revert, and an SLOAD trace.
type fakeFork struct {
	storage   map[common.Hash]*big.Int
	snapshots map[string]map[common.Hash]*big.Int
	nextSnap  int
	open      int // snapshots taken minus reverted
}

func newFakeFork(word *big.Int) *fakeFork {
	return &fakeFork{
		storage: map[common.Hash]*big.Int{
			decoySlot: big.NewInt(0x1234),
			priceSlot: word,
		},
		snapshots: make(map[string]map[common.Hash]*big.Int),
	}
}

func (f *fakeFork) Snapshot(ctx context.Context) (string, error) {
	id := fmt.Sprintf("snap-%v", f.nextSnap)
	f.nextSnap++
	f.open++
	copied := make(map[common.Hash]*big.Int, len(f.storage))
	for k, v := range f.storage {
		copied[k] = new(big.Int).Set(v)
	}
	f.snapshots[id] = copied
	return id, nil
}

func (f *fakeFork) Revert(ctx context.Context, snapId string) error {
	saved, ok := f.snapshots[snapId]
	if !ok {
		return fmt.Errorf("unknown snapshot %v", snapId)
	}
	f.storage = saved
	delete(f.snapshots, snapId)
	f.open--
	return nil
}

func (f *fakeFork) GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash) (*big.Int, error) {
	if v, ok := f.storage[slot]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (f *fakeFork) SetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, value *big.Int) error {
	f.storage[slot] = new(big.Int).Set(value)
	return nil
}

func (f *fakeFork) TraceCallSlots(ctx context.Context, to common.Address, data []byte) ([]common.Hash, error) {
	return []common.Hash{decoySlot, priceSlot}, nil
}

// fakeExchange derives getPerpetualInfo / getPosition from the packed
// word the way the contract would: the long's pnl follows the mark.
type fakeExchange struct {
	fork       *fakeFork
	entryPNS   int64
	lotLNS     int64
	depositCNS int64
}

func (f *fakeExchange) word() *big.Int {
	return f.fork.storage[priceSlot]
}

func (f *fakeExchange) GetPerpetualInfo(ctx context.Context, perpId int64) (*types.Perpetual, error) {
	w := f.word()
	return &types.Perpetual{
		Id:            perpId,
		PriceDecimals: 1,
		LotDecimals:   5,
		BasePricePNS:  big.NewInt(0),
		MarkPNS:       new(big.Int).SetUint64(ExtractField(w, fakeMarkOff)),
		OraclePNS:     new(big.Int).SetUint64(ExtractField(w, fakeOracleOff)),
		MarkTs:        int64(ExtractField(w, fakeMarkTsOff)),
		OracleTs:      int64(ExtractField(w, fakeOracleTsOff)),
	}, nil
}

func (f *fakeExchange) GetPosition(ctx context.Context, perpId, accountId int64) (*types.Position, *big.Int, bool, error) {
	mark := new(big.Int).SetUint64(ExtractField(f.word(), fakeMarkOff))
	pnl := new(big.Int).Sub(mark, big.NewInt(f.entryPNS))
	pnl.Mul(pnl, big.NewInt(f.lotLNS))
	return &types.Position{
		Id:            1,
		PerpId:        perpId,
		AccountId:     accountId,
		Type:          types.PositionLong,
		Status:        types.PositionStatusOpen,
		EntryPricePNS: big.NewInt(f.entryPNS),
		LotLNS:        big.NewInt(f.lotLNS),
		DepositCNS:    big.NewInt(f.depositCNS),
		PnlCNS:        pnl,
	}, mark, true, nil
}

func (f *fakeExchange) PerpetualInfoCalldata(perpId int64) ([]byte, error) {
	return []byte{0xde, 0xad, 0xbe, 0xef}, nil
}

func packedWord(markPNS, oraclePNS uint64) *big.Int {
	now := uint64(time.Now().Unix())
	w := new(big.Int)
	w = WriteField(w, fakeOracleOff, oraclePNS)
	w = WriteField(w, fakeMarkOff, markPNS)
	w = WriteField(w, fakeMarkTsOff, now)
	w = WriteField(w, fakeOracleTsOff, now)
	return w
}

func TestSimulateLongAgainstFakeFork(t *testing.T) {
	// entry 100000.0, size 1.0, collateral 10000: closed form 94736.84
	fork := newFakeFork(packedWord(1000000, 1000000))
	exchange := &fakeExchange{
		fork:       fork,
		entryPNS:   1000000,
		lotLNS:     100000,
		depositCNS: 10000_000000,
	}
	s := NewSimulator(Config{}, "", "", common.Address{}, nil)

	report, err := s.run(context.Background(), fork, exchange, 16, 100)
	require.NoError(t, err)

	require.False(t, report.AlreadyLiquidatable)
	require.True(t, report.Long)
	require.InDelta(t, 94736.84, report.MathPrice, 0.01)

	// fork boundary within 1% of the analytic price
	require.InDelta(t, report.MathPrice, report.ForkPrice, report.MathPrice*0.01)
	require.InDelta(t, report.ForkPrice-report.MathPrice, report.DivergenceAbs, 1e-9)

	// snapshot/revert pairs balanced on the happy path
	require.Zero(t, fork.open, "unbalanced snapshot/revert")
}

func TestSimulateAlreadyLiquidatable(t *testing.T) {
	// mark far below entry: equity gone
	fork := newFakeFork(packedWord(900000, 900000))
	exchange := &fakeExchange{
		fork:       fork,
		entryPNS:   1000000,
		lotLNS:     100000,
		depositCNS: 10000_000000,
	}
	s := NewSimulator(Config{}, "", "", common.Address{}, nil)

	report, err := s.run(context.Background(), fork, exchange, 16, 100)
	require.NoError(t, err)
	require.True(t, report.AlreadyLiquidatable)
	require.Equal(t, 90000.0, report.ForkPrice, "boundary reported at current mark")
	require.Zero(t, fork.open, "short-circuit path must not leave snapshots open")
}

func TestDiscoverPriceWord(t *testing.T) {
	fork := newFakeFork(packedWord(1000000, 999500))
	exchange := &fakeExchange{fork: fork, entryPNS: 1000000, lotLNS: 100000, depositCNS: 10000_000000}
	s := NewSimulator(Config{}, "", "", common.Address{}, nil)

	slot, offsets, err := s.discoverPriceWord(context.Background(), fork, exchange, 16)
	require.NoError(t, err)
	require.Equal(t, priceSlot, slot)
	require.Equal(t, fakeMarkOff, offsets.mark)
	require.Equal(t, fakeOracleOff, offsets.oracle)
	require.Equal(t, fakeMarkTsOff, offsets.markTs)
	require.Equal(t, fakeOracleTsOff, offsets.oracleTs)
	require.Zero(t, fork.open, "discovery must balance snapshots")
}
