package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"perplbot/pkg/codec"
)

// transact sends exchange calldata from the operator key, tunnelled
// through the proxy when one is configured. The proxy rejects any
// selector the owner has not allowlisted.
func (c *Client) transact(ctx context.Context, calldata []byte) (*ethtypes.Transaction, error) {
	if c.operatorKey == nil {
		return nil, fmt.Errorf("contract: no operator key configured")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.operatorKey, c.chainId)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	if c.proxy == (common.Address{}) {
		return c.bound.RawTransact(opts, calldata)
	}
	forwarded, err := c.proxyABI.Pack("forward", calldata)
	if err != nil {
		return nil, err
	}
	return c.boundProxy.RawTransact(opts, forwarded)
}

// ExecOrder submits one encoded order descriptor.
func (c *Client) ExecOrder(ctx context.Context, desc *codec.OrderDescriptor) (*ethtypes.Transaction, error) {
	raw, err := desc.Encode()
	if err != nil {
		return nil, err
	}
	calldata, err := c.exchangeABI.Pack("execOrder", raw)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, calldata)
}

// ExecOrders submits a batch. With revertOnFail the whole batch reverts
// on the first failing descriptor; otherwise failures are skipped.
func (c *Client) ExecOrders(ctx context.Context, descs []*codec.OrderDescriptor, revertOnFail bool) (*ethtypes.Transaction, error) {
	raws := make([][]byte, 0, len(descs))
	for _, d := range descs {
		raw, err := d.Encode()
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	calldata, err := c.exchangeABI.Pack("execOrders", raws, revertOnFail)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, calldata)
}

func (c *Client) DepositCollateral(ctx context.Context, amountCNS *big.Int) (*ethtypes.Transaction, error) {
	calldata, err := c.exchangeABI.Pack("depositCollateral", amountCNS)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, calldata)
}

func (c *Client) IncreasePositionCollateral(ctx context.Context, perpId int64, amountCNS *big.Int) (*ethtypes.Transaction, error) {
	calldata, err := c.exchangeABI.Pack("increasePositionCollateral", uint64(perpId), amountCNS)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, calldata)
}

func (c *Client) RequestDecreasePositionCollateral(ctx context.Context, perpId int64, amountCNS *big.Int) (*ethtypes.Transaction, error) {
	calldata, err := c.exchangeABI.Pack("requestDecreasePositionCollateral", uint64(perpId), amountCNS)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, calldata)
}

func (c *Client) DecreasePositionCollateral(ctx context.Context, perpId int64, amountCNS *big.Int, clampToMaximum bool) (*ethtypes.Transaction, error) {
	calldata, err := c.exchangeABI.Pack("decreasePositionCollateral", uint64(perpId), amountCNS, clampToMaximum)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, calldata)
}

// SetOperatorAllowlist is an owner-key operation on the proxy: it
// authorizes (or revokes) the trading selectors the operator may call.
func (c *Client) SetOperatorAllowlist(ctx context.Context, selectors [][4]byte, allowed bool) (*ethtypes.Transaction, error) {
	if c.ownerKey == nil {
		return nil, fmt.Errorf("contract: no owner key configured")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.ownerKey, c.chainId)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	calldata, err := c.proxyABI.Pack("setOperatorAllowlist", selectors, allowed)
	if err != nil {
		return nil, err
	}
	return c.boundProxy.RawTransact(opts, calldata)
}

// TradingSelectors returns the selector set an owner allowlists for an
// operator: order execution plus position-collateral maintenance.
func (c *Client) TradingSelectors() [][4]byte {
	names := []string{
		"execOrder", "execOrders",
		"increasePositionCollateral",
		"requestDecreasePositionCollateral", "decreasePositionCollateral",
	}
	out := make([][4]byte, 0, len(names))
	for _, n := range names {
		var sel [4]byte
		copy(sel[:], c.exchangeABI.Methods[n].ID)
		out = append(out, sel)
	}
	return out
}
