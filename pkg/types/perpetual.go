package types

import "math/big"

// Perpetual mirrors the exchange's on-chain perpetual record. All price
// fields are PNS (scaled by 10^PriceDecimals), lots are LNS (scaled by
// 10^LotDecimals) and book boundaries are ONS offsets from BasePricePNS.
// The client never mutates a Perpetual; the chain does.
type Perpetual struct {
	Id     int64
	Name   string
	Symbol string

	PriceDecimals uint8
	LotDecimals   uint8

	BasePricePNS *big.Int
	MarkPNS      *big.Int
	OraclePNS    *big.Int
	MarkTs       int64
	OracleTs     int64

	FundingRatePer100k int64 // percentage = value / 1000
	NextFundingTs      int64

	OpenInterestLongLNS  *big.Int
	OpenInterestShortLNS *big.Int

	MaxBidPriceONS *big.Int
	MinBidPriceONS *big.Int
	MaxAskPriceONS *big.Int
	MinAskPriceONS *big.Int
	TotalOrders    int64

	Paused bool
}

// HasOrders reports whether the book carries any resting orders. The
// exchange signals an empty book with both boundary offsets at zero.
func (p *Perpetual) HasOrders() bool {
	if p.MaxBidPriceONS == nil || p.MaxAskPriceONS == nil {
		return false
	}
	return p.MaxBidPriceONS.Sign() != 0 || p.MaxAskPriceONS.Sign() != 0
}
