package types

import "math/big"

type PositionType uint8

const (
	PositionNone  = PositionType(0)
	PositionLong  = PositionType(1)
	PositionShort = PositionType(2)
)

type PositionStatus string

const (
	PositionStatusOpen       = PositionStatus("open")
	PositionStatusClosed     = PositionStatus("closed")
	PositionStatusLiquidated = PositionStatus("liquidated")
)

// Position is keyed by (perpetual id, account id). The side is carried by
// Type only; LotLNS is always non-negative.
type Position struct {
	Id        int64
	PerpId    int64
	AccountId int64
	Type      PositionType
	Status    PositionStatus

	EntryPricePNS  *big.Int
	LotLNS         *big.Int
	DepositCNS     *big.Int
	PnlCNS         *big.Int // unrealized
	RealizedPnlCNS *big.Int
}

// EquityCNS is the contract's solvency-side equity: deposit plus
// unrealized pnl. Nil fields count as zero.
func (p *Position) EquityCNS() *big.Int {
	eq := new(big.Int)
	if p.DepositCNS != nil {
		eq.Set(p.DepositCNS)
	}
	if p.PnlCNS != nil {
		eq.Add(eq, p.PnlCNS)
	}
	return eq
}
