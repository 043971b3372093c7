package types

import "math/big"

// Account is the exchange-side balance record for an owner or proxy
// address. Balances are CNS (collateral token units, 10^6).
type Account struct {
	Id      int64
	Address string

	BalanceCNS       *big.Int
	LockedBalanceCNS *big.Int
}

// AvailableCNS is balance minus locked. Locked never exceeds balance on
// the exchange side; a negative result here means a stale snapshot.
func (a *Account) AvailableCNS() *big.Int {
	avail := new(big.Int)
	if a.BalanceCNS != nil {
		avail.Set(a.BalanceCNS)
	}
	if a.LockedBalanceCNS != nil {
		avail.Sub(avail, a.LockedBalanceCNS)
	}
	return avail
}
