package types

import "math/big"

// OrderType is the contract-side order type code used by execOrder /
// execOrders. The trading websocket uses its own codes (see pkg/ws).
type OrderType uint8

const (
	OrderOpenLong           = OrderType(0)
	OrderOpenShort          = OrderType(1)
	OrderCloseLong          = OrderType(2)
	OrderCloseShort         = OrderType(3)
	OrderCancel             = OrderType(4)
	OrderChange             = OrderType(5)
	OrderIncreaseCollateral = OrderType(6)
)

type OrderStatus string

const (
	OrderStatusPending       = OrderStatus("pending")
	OrderStatusOpen          = OrderStatus("open")
	OrderStatusPartialFilled = OrderStatus("partial_filled")
	OrderStatusFilled        = OrderStatus("filled")
	OrderStatusCancelled     = OrderStatus("cancelled")
	OrderStatusRejected      = OrderStatus("rejected")
	OrderStatusExpired       = OrderStatus("expired")
)

// IsOpen reports whether the order still rests on the book.
func (s OrderStatus) IsOpen() bool {
	return s == OrderStatusOpen || s == OrderStatusPartialFilled
}

// OrderFlags are ORed into order submissions. GTC is the zero value.
type OrderFlags uint8

const (
	FlagGTC               = OrderFlags(0)
	FlagPostOnly          = OrderFlags(1)
	FlagFillOrKill        = OrderFlags(2)
	FlagImmediateOrCancel = OrderFlags(4)
)

// Order is keyed by the contract-assigned order id. Ids reported by the
// REST history endpoints are a different namespace and must never be used
// where an Order.Id is expected.
type Order struct {
	Id        int64
	PerpId    int64
	AccountId int64
	Type      OrderType
	Status    OrderStatus

	PricePNS    *big.Int
	LotLNS      *big.Int
	FilledLNS   *big.Int
	LeverageHdt int64
	Flags       OrderFlags
	ExpiryBlock int64
}
