package types

import "math/big"

type LiquiditySide string

const (
	LiquidityMaker = LiquiditySide("maker")
	LiquidityTaker = LiquiditySide("taker")
)

// Fill is an immutable execution event.
type Fill struct {
	OrderId   int64
	PerpId    int64
	AccountId int64
	Side      LiquiditySide

	PricePNS *big.Int
	LotLNS   *big.Int
	FeeCNS   *big.Int

	BlockNumber int64
	LogIndex    int64
}
