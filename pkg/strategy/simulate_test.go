package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"perplbot/pkg/types"
)

func TestSimulateGrid(t *testing.T) {
	res, err := Simulate(Grid, Input{
		Symbol: "BTC-PERP", MidPrice: 100000, Size: 1, Leverage: 10,
		MakerFeePct: 0.0002,
	}, Params{Levels: 2, SpacingPct: 1})
	require.NoError(t, err)

	require.Len(t, res.Levels, 4)
	require.Equal(t, "buy", res.Levels[0].Side)
	require.Equal(t, 99000.0, res.Levels[0].Price)
	require.Equal(t, "sell", res.Levels[1].Side)
	require.Equal(t, 101000.0, res.Levels[1].Price)
	require.Equal(t, 98000.0, res.Levels[2].Price)
	require.Equal(t, 102000.0, res.Levels[3].Price)

	for _, l := range res.Levels {
		require.Equal(t, 0.25, l.Qty)
		require.InDelta(t, l.Price*0.25/10, l.MarginUSD, 1e-9)
	}
	require.Greater(t, res.TotalMarginUSD, 0.0)
	require.Greater(t, res.FeePerCycleUSD, 0.0)
}

func TestSimulateMM(t *testing.T) {
	t.Run("explicit spread", func(t *testing.T) {
		res, err := Simulate(MM, Input{MidPrice: 100000, Size: 1, Leverage: 5}, Params{SpreadPct: 0.2})
		require.NoError(t, err)
		require.Len(t, res.Levels, 2)
		require.Equal(t, 99800.0, res.Levels[0].Price)
		require.Equal(t, 100200.0, res.Levels[1].Price)
		require.Equal(t, 0.2, res.SpreadPct)
	})

	t.Run("spread floor without candles", func(t *testing.T) {
		res, err := Simulate(MM, Input{MidPrice: 100000, Size: 1, Leverage: 5}, Params{})
		require.NoError(t, err)
		require.Equal(t, minSpreadPct, res.SpreadPct)
		require.Less(t, res.Levels[0].Price, res.Levels[1].Price, "quotes never cross")
	})

	t.Run("volatility-sized spread", func(t *testing.T) {
		candles := make([]types.Candle, 40)
		price := 100000.0
		for i := range candles {
			// the same 2% high/low swing around a flat close on every candle
			swing := price * 0.02
			candles[i] = types.Candle{High: price + swing, Low: price - swing, Close: price}
		}
		res, err := Simulate(MM, Input{MidPrice: price, Size: 1, Leverage: 5, Candles: candles}, Params{AtrWindow: 10})
		require.NoError(t, err)
		require.Greater(t, res.SpreadPct, minSpreadPct)
	})
}

func TestSimulateValidation(t *testing.T) {
	_, err := Simulate(Grid, Input{MidPrice: 0, Size: 1}, Params{})
	require.Error(t, err)

	_, err = Simulate(Grid, Input{MidPrice: 1, Size: 0}, Params{})
	require.Error(t, err)

	_, err = Simulate(Name("momentum"), Input{MidPrice: 1, Size: 1}, Params{})
	require.Error(t, err)
}
