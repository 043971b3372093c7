package tracker

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"perplbot/pkg/types"
	"perplbot/pkg/ws"
)

func walletEvent() ws.Event {
	return ws.Event{
		Mt: 19, Snapshot: true,
		Data: []byte(`{"mt":19,"d":[{"id":100,"addr":"0xabc","b":"25000000000","lb":"5000000000"}]}`),
	}
}

func TestWallet(t *testing.T) {
	tr := New()
	tr.onWallet(walletEvent())

	acc := tr.Account()
	require.NotNil(t, acc)
	require.Equal(t, int64(100), acc.Id)
	require.Equal(t, int64(25000000000), acc.BalanceCNS.Int64())

	balance, locked, available := tr.Balance()
	require.Equal(t, 25000.0, balance)
	require.Equal(t, 5000.0, locked)
	require.Equal(t, 20000.0, available)

	require.Len(t, tr.WalletAccounts(), 1)
}

func TestOrdersLifecycle(t *testing.T) {
	tr := New()

	tr.onOrders(ws.Event{Mt: 23, Snapshot: true, Data: []byte(
		`{"mt":23,"d":[
			{"id":1,"pid":16,"aid":100,"t":0,"st":"open","p":"950000","l":"10000"},
			{"id":2,"pid":16,"aid":100,"t":1,"st":"partial_filled","p":"960000","l":"5000"}
		]}`)})
	require.Len(t, tr.Orders(), 2)

	t.Run("terminal status removes order", func(t *testing.T) {
		tr.onOrders(ws.Event{Mt: 24, Data: []byte(
			`{"mt":24,"d":[{"id":2,"pid":16,"st":"filled"}]}`)})
		_, ok := tr.Order(2)
		require.False(t, ok)
	})

	t.Run("remove flag removes order", func(t *testing.T) {
		tr.onOrders(ws.Event{Mt: 24, Data: []byte(
			`{"mt":24,"d":[{"id":1,"pid":16,"st":"open","r":true}]}`)})
		_, ok := tr.Order(1)
		require.False(t, ok)
		require.Empty(t, tr.Orders())
	})

	t.Run("snapshot resets the map", func(t *testing.T) {
		tr.onOrders(ws.Event{Mt: 24, Data: []byte(
			`{"mt":24,"d":[{"id":3,"pid":16,"st":"open","p":"1","l":"1"}]}`)})
		require.Len(t, tr.Orders(), 1)

		tr.onOrders(ws.Event{Mt: 23, Snapshot: true, Data: []byte(
			`{"mt":23,"d":[{"id":9,"pid":16,"st":"open","p":"1","l":"1"}]}`)})
		require.Len(t, tr.Orders(), 1)
		_, ok := tr.Order(9)
		require.True(t, ok)
	})
}

func TestPositionsLifecycle(t *testing.T) {
	tr := New()

	tr.onPositions(ws.Event{Mt: 26, Snapshot: true, Data: []byte(
		`{"mt":26,"d":[{"id":7,"pid":16,"aid":100,"pt":1,"st":"open","ep":"950000","l":"100000","dep":"10000000000","pnl":"-500000000"}]}`)})
	require.Len(t, tr.Positions(), 1)

	pos, ok := tr.Position(7)
	require.True(t, ok)
	require.Equal(t, types.PositionLong, pos.Type)

	t.Run("derived totals", func(t *testing.T) {
		tr.onWallet(walletEvent())
		require.Equal(t, int64(-500000000), tr.TotalUnrealizedPnlCNS().Int64())
		require.Equal(t, int64(24500000000), tr.TotalEquityCNS().Int64())
	})

	t.Run("non-open status removes position", func(t *testing.T) {
		tr.onPositions(ws.Event{Mt: 27, Data: []byte(
			`{"mt":27,"d":[{"id":7,"pid":16,"st":"closed"}]}`)})
		_, ok := tr.Position(7)
		require.False(t, ok)
		require.Empty(t, tr.Positions())
	})
}

func TestAtRisk(t *testing.T) {
	tr := New()
	// long 1.0 at entry 100000 with 10000 collateral: closed-form
	// liquidation 94736.84
	tr.onPositions(ws.Event{Mt: 26, Snapshot: true, Data: []byte(
		`{"mt":26,"d":[{"id":7,"pid":16,"pt":1,"st":"open","ep":"1000000","l":"100000","dep":"10000000000","pnl":"0"}]}`)})

	decimals := map[int64][2]uint8{16: {1, 5}}

	t.Run("far from liquidation", func(t *testing.T) {
		marks := map[int64]*big.Int{16: big.NewInt(1000000)} // mark 100000
		require.False(t, tr.AtRisk(marks, decimals, 0.05, 2))
	})

	t.Run("close to liquidation", func(t *testing.T) {
		marks := map[int64]*big.Int{16: big.NewInt(950000)} // mark 95000
		require.True(t, tr.AtRisk(marks, decimals, 0.05, 2))
	})
}

func TestStaleness(t *testing.T) {
	tr := New()
	require.True(t, tr.IsStale(time.Minute), "no updates yet")

	tr.onFills(ws.Event{Mt: 25, Data: []byte(`{"mt":25,"d":[]}`)})
	require.False(t, tr.IsStale(time.Minute))
	require.True(t, tr.IsStale(0))
}
