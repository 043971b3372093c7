package indicator

import (
	"fmt"
	"math"

	"perplbot/pkg/types"
)

func CalculateTR(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

func CalculateATRLines(candles []types.Candle, window int) []float64 {
	if len(candles) < 2*window+1 {
		return []float64{}
	}
	trValues := make([]float64, 2*window)
	atrValues := make([]float64, window)

	startIndex := len(candles) - 2*window
	for i := startIndex; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close
		trValues[i-startIndex] = CalculateTR(high, low, prevClose)
	}

	for i := 0; i < window; i++ {
		atrValues[i] = CalculateAverage(trValues[i+1 : i+window+1])
	}

	return atrValues
}

func CalculateATR(candles []types.Candle, window int) (float64, error) {
	atrValues := CalculateATRLines(candles, window)
	if len(atrValues) == 0 {
		return 0, fmt.Errorf("no atr values available")
	}
	return atrValues[len(atrValues)-1], nil
}

// CalculateATRIndex is ATR as a percentage of the recent average close.
func CalculateATRIndex(candles []types.Candle, window int) (float64, error) {
	atr, err := CalculateATR(candles, window)
	if err != nil {
		return 0, err
	}

	closePrices := make([]float64, window)
	for i := len(candles) - window; i < len(candles); i++ {
		closePrices[i-(len(candles)-window)] = candles[i].Close
	}

	avg := CalculateAverage(closePrices)
	if avg == 0 {
		return 0, nil
	}
	return atr / avg * 100, nil
}
