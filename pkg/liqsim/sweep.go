package liqsim

import (
	"context"
	"errors"
	"math/big"
	"sort"
)

// ErrNoBoundary is returned when a sweep finds every point liquidatable
// or every point safe.
var ErrNoBoundary = errors.New("liqsim: sweep found no liquidation boundary")

// priceProbe answers whether the position is liquidatable with the mark
// forced to pricePNS. Implementations snapshot and revert around the
// write so probes are independent.
type priceProbe func(ctx context.Context, pricePNS *big.Int) (bool, error)

type pricePoint struct {
	pricePNS     *big.Int
	liquidatable bool
}

// sweep evaluates steps price points uniformly across
// [mark*(1-rangePct/100), mark*(1+rangePct/100)].
func sweep(ctx context.Context, markPNS *big.Int, rangePct float64, steps int, probe priceProbe) ([]pricePoint, error) {
	if steps < 2 {
		steps = 2
	}
	mark := new(big.Float).SetInt(markPNS)
	lo := new(big.Float).Mul(mark, big.NewFloat(1-rangePct/100))
	hi := new(big.Float).Mul(mark, big.NewFloat(1+rangePct/100))
	span := new(big.Float).Sub(hi, lo)

	points := make([]pricePoint, 0, steps)
	for i := 0; i < steps; i++ {
		frac := big.NewFloat(float64(i) / float64(steps-1))
		p := new(big.Float).Add(lo, new(big.Float).Mul(span, frac))
		price, _ := p.Int(nil)
		if price.Sign() <= 0 {
			continue
		}
		liq, err := probe(ctx, price)
		if err != nil {
			return nil, err
		}
		points = append(points, pricePoint{pricePNS: price, liquidatable: liq})
	}
	return points, nil
}

// findBoundary locates the adjacent (safe, liquidatable) pair bracketing
// the liquidation price. For a long the safe price is the higher one;
// for a short the lower.
func findBoundary(points []pricePoint, long bool) (safe, liquidatable *big.Int, err error) {
	sorted := append([]pricePoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].pricePNS.Cmp(sorted[j].pricePNS) < 0
	})

	if long {
		// walk upward: liquidatable below, safe above
		for i := 0; i+1 < len(sorted); i++ {
			if sorted[i].liquidatable && !sorted[i+1].liquidatable {
				return sorted[i+1].pricePNS, sorted[i].pricePNS, nil
			}
		}
		return nil, nil, ErrNoBoundary
	}
	// short: safe below, liquidatable above
	for i := 0; i+1 < len(sorted); i++ {
		if !sorted[i].liquidatable && sorted[i+1].liquidatable {
			return sorted[i].pricePNS, sorted[i+1].pricePNS, nil
		}
	}
	return nil, nil, ErrNoBoundary
}

// binarySearch refines the bracketing pair for a fixed number of
// iterations and returns the last price found liquidatable.
func binarySearch(ctx context.Context, safe, liquidatable *big.Int, iterations int, probe priceProbe) (*big.Int, error) {
	s := new(big.Int).Set(safe)
	l := new(big.Int).Set(liquidatable)
	for i := 0; i < iterations; i++ {
		mid := new(big.Int).Add(s, l)
		mid.Rsh(mid, 1)
		if mid.Cmp(s) == 0 || mid.Cmp(l) == 0 {
			break
		}
		liq, err := probe(ctx, mid)
		if err != nil {
			return nil, err
		}
		if liq {
			l = mid
		} else {
			s = mid
		}
	}
	return l, nil
}
