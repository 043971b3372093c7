package liqsim

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// thresholdProbe marks a long liquidatable below the threshold.
func thresholdProbe(thresholdPNS int64) priceProbe {
	return func(ctx context.Context, pricePNS *big.Int) (bool, error) {
		return pricePNS.Cmp(big.NewInt(thresholdPNS)) < 0, nil
	}
}

func TestSweepAndBoundaryLong(t *testing.T) {
	probe := thresholdProbe(947368)
	points, err := sweep(context.Background(), big.NewInt(1000000), 30, 20, probe)
	require.NoError(t, err)
	require.Len(t, points, 20)

	safe, liq, err := findBoundary(points, true)
	require.NoError(t, err)
	require.True(t, safe.Cmp(liq) > 0, "long: safe price above liquidatable")
	require.True(t, safe.Cmp(big.NewInt(947368)) >= 0)
	require.True(t, liq.Cmp(big.NewInt(947368)) < 0)
}

func TestSweepAndBoundaryShort(t *testing.T) {
	// short liquidates above threshold
	probe := func(ctx context.Context, p *big.Int) (bool, error) {
		return p.Cmp(big.NewInt(1047619)) > 0, nil
	}
	points, err := sweep(context.Background(), big.NewInt(1000000), 30, 20, probe)
	require.NoError(t, err)

	safe, liq, err := findBoundary(points, false)
	require.NoError(t, err)
	require.True(t, safe.Cmp(liq) < 0, "short: safe price below liquidatable")
}

func TestBoundaryDegenerate(t *testing.T) {
	t.Run("all safe", func(t *testing.T) {
		points := []pricePoint{
			{big.NewInt(1), false}, {big.NewInt(2), false}, {big.NewInt(3), false},
		}
		_, _, err := findBoundary(points, true)
		require.ErrorIs(t, err, ErrNoBoundary)
	})

	t.Run("all liquidatable", func(t *testing.T) {
		points := []pricePoint{
			{big.NewInt(1), true}, {big.NewInt(2), true},
		}
		_, _, err := findBoundary(points, true)
		require.ErrorIs(t, err, ErrNoBoundary)
	})
}

func TestBinarySearchConverges(t *testing.T) {
	probe := thresholdProbe(947368)
	got, err := binarySearch(context.Background(), big.NewInt(968421), big.NewInt(936842), 10, probe)
	require.NoError(t, err)

	// result is liquidatable and within the final bracket width
	diff := new(big.Int).Sub(got, big.NewInt(947368))
	diff.Abs(diff)
	require.True(t, diff.Int64() <= (968421-936842)/(1<<10)+1, "diff %v", diff)
	require.True(t, got.Cmp(big.NewInt(947368)) < 0)
}
