// Package liqsim estimates and verifies liquidation prices: a
// closed-form model that is always available, and a fork-based verifier
// that manipulates the exchange's packed price word on a local forked
// node and applies the contract's own solvency rule.
package liqsim

// ClosedFormLiqPrice solves equity(L) = m * |position_value(L)| for the
// price L at which the position becomes liquidatable. entry and the
// result are display prices, size is absolute display size, collateral
// is display collateral. Funding accrual and close fees are ignored.
func ClosedFormLiqPrice(entry, size, collateral, maintenance float64, long bool) float64 {
	if size == 0 {
		return 0
	}
	if long {
		denom := size * (1 - maintenance)
		if denom == 0 {
			return 0
		}
		return (entry*size - collateral) / denom
	}
	denom := size * (1 + maintenance)
	if denom == 0 {
		return 0
	}
	return (entry*size + collateral) / denom
}

// PnlPercent is realized-or-unrealized pnl over margin, in percent.
// Zero margin yields zero, not infinity.
func PnlPercent(pnl, margin float64) float64 {
	if margin == 0 {
		return 0
	}
	return pnl / margin * 100
}
