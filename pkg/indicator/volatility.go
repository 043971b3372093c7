package indicator

import (
	"fmt"
	"math"

	"perplbot/pkg/types"
)

func CalculateVolatility(candles []types.Candle, window int) (float64, error) {
	if len(candles) < window+1 {
		return 0, fmt.Errorf("insufficient candles: have %v/%v", len(candles), window)
	}

	var sumSquaredDiff float64
	startIndex := len(candles) - window
	for i := startIndex; i < len(candles); i++ {
		diff := candles[i].Close - candles[i-1].Close
		sumSquaredDiff += diff * diff
	}
	avg := sumSquaredDiff / float64(window)
	return math.Sqrt(avg), nil
}
