package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"perplbot/pkg/types"
)

// CloseLeverageHdths is passed on close descriptors; the matching engine
// ignores it.
const CloseLeverageHdths = 100

// OrderDescriptor is the tuple consumed by the exchange's execOrder and
// execOrders entry points.
type OrderDescriptor struct {
	DescId            uint64
	PerpId            uint64
	OrderType         types.OrderType
	OrderId           uint64
	PricePNS          *big.Int
	LotLNS            *big.Int
	ExpiryBlock       uint64
	PostOnly          bool
	FillOrKill        bool
	ImmediateOrCancel bool
	MaxMatches        uint64
	LeverageHdt       uint64
	LastExecBlock     uint64
	AmountCNS         *big.Int
}

var descArgs abi.Arguments

func init() {
	u64, err := abi.NewType("uint64", "", nil)
	if err != nil {
		panic(err)
	}
	u8, err := abi.NewType("uint8", "", nil)
	if err != nil {
		panic(err)
	}
	u256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	boolT, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic(err)
	}
	descArgs = abi.Arguments{
		{Name: "descId", Type: u64},
		{Name: "perpId", Type: u64},
		{Name: "orderType", Type: u8},
		{Name: "orderId", Type: u64},
		{Name: "pricePNS", Type: u256},
		{Name: "lotLNS", Type: u256},
		{Name: "expiryBlock", Type: u64},
		{Name: "postOnly", Type: boolT},
		{Name: "fillOrKill", Type: boolT},
		{Name: "immediateOrCancel", Type: boolT},
		{Name: "maxMatches", Type: u64},
		{Name: "leverageHdt", Type: u64},
		{Name: "lastExecBlock", Type: u64},
		{Name: "amountCNS", Type: u256},
	}
}

// Validate enforces the engine's descriptor constraints before encoding.
func (d *OrderDescriptor) Validate() error {
	switch d.OrderType {
	case types.OrderOpenLong, types.OrderOpenShort:
		if d.LotLNS == nil || d.LotLNS.Sign() <= 0 {
			return fmt.Errorf("open order requires positive lot, got %v", d.LotLNS)
		}
		if d.LeverageHdt < 100 {
			return fmt.Errorf("open order requires leverage >= 1x, got %v hundredths", d.LeverageHdt)
		}
	case types.OrderCloseLong, types.OrderCloseShort:
		if d.LotLNS == nil || d.LotLNS.Sign() <= 0 {
			return fmt.Errorf("close order requires positive lot, got %v", d.LotLNS)
		}
	case types.OrderCancel:
		if d.OrderId == 0 {
			return fmt.Errorf("cancel requires an order id")
		}
	case types.OrderChange, types.OrderIncreaseCollateral:
	default:
		return fmt.Errorf("unknown order type %v", d.OrderType)
	}
	return nil
}

// Encode ABI-packs the descriptor for a contract call.
func (d *OrderDescriptor) Encode() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	price := d.PricePNS
	if price == nil {
		price = new(big.Int)
	}
	lot := d.LotLNS
	if lot == nil {
		lot = new(big.Int)
	}
	amount := d.AmountCNS
	if amount == nil {
		amount = new(big.Int)
	}
	return descArgs.Pack(
		d.DescId, d.PerpId, uint8(d.OrderType), d.OrderId,
		price, lot, d.ExpiryBlock,
		d.PostOnly, d.FillOrKill, d.ImmediateOrCancel,
		d.MaxMatches, d.LeverageHdt, d.LastExecBlock, amount,
	)
}

// DecodeOrderDescriptor reverses Encode.
func DecodeOrderDescriptor(data []byte) (*OrderDescriptor, error) {
	vals, err := descArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("fail to unpack order descriptor: %w", err)
	}
	d := &OrderDescriptor{
		DescId:            vals[0].(uint64),
		PerpId:            vals[1].(uint64),
		OrderType:         types.OrderType(vals[2].(uint8)),
		OrderId:           vals[3].(uint64),
		PricePNS:          vals[4].(*big.Int),
		LotLNS:            vals[5].(*big.Int),
		ExpiryBlock:       vals[6].(uint64),
		PostOnly:          vals[7].(bool),
		FillOrKill:        vals[8].(bool),
		ImmediateOrCancel: vals[9].(bool),
		MaxMatches:        vals[10].(uint64),
		LeverageHdt:       vals[11].(uint64),
		LastExecBlock:     vals[12].(uint64),
		AmountCNS:         vals[13].(*big.Int),
	}
	return d, nil
}
