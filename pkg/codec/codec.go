// Package codec converts between display units and the exchange's scaled
// integer encodings: PNS (price, 10^priceDecimals), LNS (lot,
// 10^lotDecimals), CNS (collateral, 10^6) and ONS (offset from a
// perpetual's base price). The scalings are chosen so that PNS * LNS is a
// CNS value without any extra normalization.
package codec

import (
	"math"
	"math/big"
)

// CollateralDecimals is fixed by the collateral token.
const CollateralDecimals = 6

func pow10(d uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d)), nil)
}

func toScaled(v float64, d uint8) *big.Int {
	f := new(big.Float).SetPrec(128).SetFloat64(v)
	f.Mul(f, new(big.Float).SetInt(pow10(d)))
	// round half away from zero
	half := big.NewFloat(0.5)
	if f.Sign() < 0 {
		f.Sub(f, half)
	} else {
		f.Add(f, half)
	}
	out, _ := f.Int(nil)
	return out
}

func fromScaled(v *big.Int, d uint8) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetPrec(128).SetInt(v)
	f.Quo(f, new(big.Float).SetInt(pow10(d)))
	out, _ := f.Float64()
	return out
}

// PriceToPNS scales a display price into PNS.
func PriceToPNS(price float64, priceDecimals uint8) *big.Int {
	return toScaled(price, priceDecimals)
}

func PNSToPrice(pns *big.Int, priceDecimals uint8) float64 {
	return fromScaled(pns, priceDecimals)
}

// LotToLNS scales a display size into LNS.
func LotToLNS(lot float64, lotDecimals uint8) *big.Int {
	return toScaled(lot, lotDecimals)
}

func LNSToLot(lns *big.Int, lotDecimals uint8) float64 {
	return fromScaled(lns, lotDecimals)
}

// AmountToCNS scales a collateral amount into CNS.
func AmountToCNS(amount float64) *big.Int {
	return toScaled(amount, CollateralDecimals)
}

func CNSToAmount(cns *big.Int) float64 {
	return fromScaled(cns, CollateralDecimals)
}

// LeverageToHdths converts display leverage into integer hundredths.
func LeverageToHdths(leverage float64) int64 {
	return int64(math.Round(leverage * 100))
}

func HdthsToLeverage(hdths int64) float64 {
	return float64(hdths) / 100
}

// ONSFromPNS converts an absolute PNS price into the book's offset
// representation relative to the perpetual's base price.
func ONSFromPNS(pns, basePricePNS *big.Int) *big.Int {
	return new(big.Int).Sub(pns, basePricePNS)
}

func PNSFromONS(ons, basePricePNS *big.Int) *big.Int {
	return new(big.Int).Add(ons, basePricePNS)
}

// PositionValueCNS computes markPNS * lotLNS. The platform's decimal
// choices make this an exact CNS amount.
func PositionValueCNS(markPNS, lotLNS *big.Int) *big.Int {
	return new(big.Int).Mul(markPNS, lotLNS)
}

// FundingRatePct converts the signed per-100k funding integer into a
// percentage.
func FundingRatePct(per100k int64) float64 {
	return float64(per100k) / 1000
}
