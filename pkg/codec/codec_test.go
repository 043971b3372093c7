package codec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"perplbot/pkg/types"
)

func TestPriceRoundTrip(t *testing.T) {
	t.Run("btc one decimal", func(t *testing.T) {
		pns := PriceToPNS(95000.0, 1)
		require.Equal(t, int64(950000), pns.Int64())
		require.Equal(t, 95000.0, PNSToPrice(pns, 1))
	})

	t.Run("offset from base price", func(t *testing.T) {
		pns := PriceToPNS(94900.0, 1)
		require.Equal(t, int64(949000), pns.Int64())
		ons := ONSFromPNS(pns, big.NewInt(900000))
		require.Equal(t, int64(49000), ons.Int64())
		require.Equal(t, int64(949000), PNSFromONS(ons, big.NewInt(900000)).Int64())
	})

	t.Run("round trip across decimals", func(t *testing.T) {
		for _, d := range []uint8{0, 1, 2, 4, 6, 8} {
			for _, p := range []float64{0, 0.5, 1, 42.42, 95000.1, 123456.789} {
				got := PNSToPrice(PriceToPNS(p, d), d)
				ulp := 1 / float64(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d)), nil).Int64())
				require.InDelta(t, p, got, ulp, "d=%d p=%v", d, p)
			}
		}
	})
}

func TestLotAndAmount(t *testing.T) {
	lns := LotToLNS(1.25, 4)
	require.Equal(t, int64(12500), lns.Int64())
	require.Equal(t, 1.25, LNSToLot(lns, 4))

	cns := AmountToCNS(10000)
	require.Equal(t, int64(10000_000000), cns.Int64())
	require.Equal(t, 10000.0, CNSToAmount(cns))
}

func TestLeverageHdths(t *testing.T) {
	require.Equal(t, int64(100), LeverageToHdths(1))
	require.Equal(t, int64(1000), LeverageToHdths(10))
	require.Equal(t, int64(250), LeverageToHdths(2.5))
	require.Equal(t, 2.5, HdthsToLeverage(250))
}

func TestFundingRatePct(t *testing.T) {
	require.Equal(t, 0.012, FundingRatePct(12))
	require.Equal(t, -0.5, FundingRatePct(-500))
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := &OrderDescriptor{
		DescId:        7,
		PerpId:        16,
		OrderType:     types.OrderOpenLong,
		PricePNS:      big.NewInt(950000),
		LotLNS:        big.NewInt(10000),
		ExpiryBlock:   123456,
		PostOnly:      true,
		MaxMatches:    8,
		LeverageHdt:   1000,
		LastExecBlock: 50000,
		AmountCNS:     big.NewInt(0),
	}
	raw, err := d.Encode()
	require.NoError(t, err)

	back, err := DecodeOrderDescriptor(raw)
	require.NoError(t, err)
	require.Equal(t, d.DescId, back.DescId)
	require.Equal(t, d.PerpId, back.PerpId)
	require.Equal(t, d.OrderType, back.OrderType)
	require.Equal(t, 0, d.PricePNS.Cmp(back.PricePNS))
	require.Equal(t, 0, d.LotLNS.Cmp(back.LotLNS))
	require.Equal(t, d.ExpiryBlock, back.ExpiryBlock)
	require.True(t, back.PostOnly)
	require.False(t, back.FillOrKill)
	require.False(t, back.ImmediateOrCancel)
	require.Equal(t, d.MaxMatches, back.MaxMatches)
	require.Equal(t, d.LeverageHdt, back.LeverageHdt)
	require.Equal(t, d.LastExecBlock, back.LastExecBlock)
}

func TestDescriptorValidation(t *testing.T) {
	t.Run("open without lot", func(t *testing.T) {
		d := &OrderDescriptor{OrderType: types.OrderOpenShort, LeverageHdt: 100}
		require.Error(t, d.Validate())
	})

	t.Run("open below 1x leverage", func(t *testing.T) {
		d := &OrderDescriptor{OrderType: types.OrderOpenLong, LotLNS: big.NewInt(1), LeverageHdt: 99}
		require.Error(t, d.Validate())
	})

	t.Run("close uses sentinel leverage", func(t *testing.T) {
		d := &OrderDescriptor{OrderType: types.OrderCloseLong, LotLNS: big.NewInt(1), LeverageHdt: CloseLeverageHdths}
		require.NoError(t, d.Validate())
	})

	t.Run("cancel requires order id", func(t *testing.T) {
		d := &OrderDescriptor{OrderType: types.OrderCancel}
		require.Error(t, d.Validate())
		d.OrderId = 42
		require.NoError(t, d.Validate())
	})
}

func TestPositionValueCNS(t *testing.T) {
	// mark 95000.0 at 1 price decimal, 1.0 BTC at 4 lot decimals
	v := PositionValueCNS(big.NewInt(950000), big.NewInt(10000))
	require.Equal(t, int64(9500000000), v.Int64())
}
