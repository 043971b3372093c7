// Package contract is the chain-side path: authoritative reads against
// the exchange contract and writes tunnelled through the owner/operator
// proxy. Order ids observed here are the only authoritative ids in the
// system.
package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"perplbot/pkg/types"
)

// ErrStaleMark is returned when the contract reports its mark price as
// invalid.
var ErrStaleMark = errors.New("contract: mark price invalid")

// Backend is the slice of the chain client the contract client needs;
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractCaller
	bind.ContractTransactor
}

type Client struct {
	backend  Backend
	chainId  *big.Int
	exchange common.Address
	proxy    common.Address // zero: operator calls the exchange directly

	operatorKey *ecdsa.PrivateKey
	ownerKey    *ecdsa.PrivateKey

	exchangeABI abi.ABI
	proxyABI    abi.ABI
	bound       *bind.BoundContract
	boundProxy  *bind.BoundContract

	logger *log.Entry
}

type Options struct {
	ChainId     int64
	Exchange    common.Address
	Proxy       common.Address
	OperatorKey *ecdsa.PrivateKey
	OwnerKey    *ecdsa.PrivateKey
}

// Dial connects the contract client over JSON-RPC.
func Dial(ctx context.Context, rpcUrl string, opts Options) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("fail to dial rpc %v: %w", rpcUrl, err)
	}
	return New(eth, opts)
}

// New builds a client over an existing backend.
func New(backend Backend, opts Options) (*Client, error) {
	exchangeABI, err := abi.JSON(strings.NewReader(exchangeABIJSON))
	if err != nil {
		return nil, err
	}
	proxyABI, err := abi.JSON(strings.NewReader(proxyABIJSON))
	if err != nil {
		return nil, err
	}
	c := &Client{
		backend:     backend,
		chainId:     big.NewInt(opts.ChainId),
		exchange:    opts.Exchange,
		proxy:       opts.Proxy,
		operatorKey: opts.OperatorKey,
		ownerKey:    opts.OwnerKey,
		exchangeABI: exchangeABI,
		proxyABI:    proxyABI,
		bound:       bind.NewBoundContract(opts.Exchange, exchangeABI, backend, backend, nil),
		boundProxy:  bind.NewBoundContract(opts.Proxy, proxyABI, backend, backend, nil),
		logger:      log.WithFields(log.Fields{"mod": "contract", "exchange": opts.Exchange.Hex()}),
	}
	return c, nil
}

// ExchangeAddress returns the exchange contract address.
func (c *Client) ExchangeAddress() common.Address { return c.exchange }

// PerpetualInfoCalldata packs a getPerpetualInfo call for use with
// debug_traceCall.
func (c *Client) PerpetualInfoCalldata(perpId int64) ([]byte, error) {
	return c.exchangeABI.Pack("getPerpetualInfo", uint64(perpId))
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	if err != nil {
		return nil, fmt.Errorf("fail to call %v: %w", method, err)
	}
	return out, nil
}

func accountFromVals(vals []any) *types.Account {
	return &types.Account{
		Id:               int64(vals[0].(uint64)),
		Address:          vals[1].(common.Address).Hex(),
		BalanceCNS:       vals[2].(*big.Int),
		LockedBalanceCNS: vals[3].(*big.Int),
	}
}

func (c *Client) GetAccountById(ctx context.Context, accountId int64) (*types.Account, error) {
	vals, err := c.call(ctx, "getAccountById", uint64(accountId))
	if err != nil {
		return nil, err
	}
	return accountFromVals(vals), nil
}

func (c *Client) GetAccountByAddress(ctx context.Context, owner common.Address) (*types.Account, error) {
	vals, err := c.call(ctx, "getAccountByAddress", owner)
	if err != nil {
		return nil, err
	}
	return accountFromVals(vals), nil
}

func (c *Client) GetPerpetualInfo(ctx context.Context, perpId int64) (*types.Perpetual, error) {
	vals, err := c.call(ctx, "getPerpetualInfo", uint64(perpId))
	if err != nil {
		return nil, err
	}
	return &types.Perpetual{
		Id:                   perpId,
		Name:                 vals[0].(string),
		Symbol:               vals[1].(string),
		PriceDecimals:        vals[2].(uint8),
		LotDecimals:          vals[3].(uint8),
		BasePricePNS:         vals[4].(*big.Int),
		MarkPNS:              vals[5].(*big.Int),
		OraclePNS:            vals[6].(*big.Int),
		MarkTs:               int64(vals[7].(uint64)),
		OracleTs:             int64(vals[8].(uint64)),
		FundingRatePer100k:   vals[9].(*big.Int).Int64(),
		NextFundingTs:        int64(vals[10].(uint64)),
		OpenInterestLongLNS:  vals[11].(*big.Int),
		OpenInterestShortLNS: vals[12].(*big.Int),
		MaxBidPriceONS:       vals[13].(*big.Int),
		MinBidPriceONS:       vals[14].(*big.Int),
		MaxAskPriceONS:       vals[15].(*big.Int),
		MinAskPriceONS:       vals[16].(*big.Int),
		TotalOrders:          int64(vals[17].(uint64)),
		Paused:               vals[18].(bool),
	}, nil
}

// GetPosition reads the contract's own view of a position along with the
// mark price it would settle against. markPriceValid=false surfaces as
// ErrStaleMark only when the caller asks for it via GetPositionStrict.
func (c *Client) GetPosition(ctx context.Context, perpId, accountId int64) (*types.Position, *big.Int, bool, error) {
	vals, err := c.call(ctx, "getPosition", uint64(perpId), uint64(accountId))
	if err != nil {
		return nil, nil, false, err
	}
	pos := &types.Position{
		Id:            int64(vals[0].(uint64)),
		PerpId:        perpId,
		AccountId:     accountId,
		Type:          types.PositionType(vals[1].(uint8)),
		Status:        types.PositionStatusOpen,
		EntryPricePNS: vals[2].(*big.Int),
		LotLNS:        vals[3].(*big.Int),
		DepositCNS:    vals[4].(*big.Int),
		PnlCNS:        vals[5].(*big.Int),
	}
	if pos.Type == types.PositionNone {
		pos.Status = types.PositionStatusClosed
	}
	return pos, vals[6].(*big.Int), vals[7].(bool), nil
}

// GetPositionStrict is GetPosition but rejects a stale mark.
func (c *Client) GetPositionStrict(ctx context.Context, perpId, accountId int64) (*types.Position, *big.Int, error) {
	pos, mark, valid, err := c.GetPosition(ctx, perpId, accountId)
	if err != nil {
		return nil, nil, err
	}
	if !valid {
		return nil, nil, ErrStaleMark
	}
	return pos, mark, nil
}

// GetOpenOrders returns the contract's resting orders for an account.
// These are the only order ids that may be cancelled.
func (c *Client) GetOpenOrders(ctx context.Context, perpId, accountId int64) ([]types.Order, error) {
	vals, err := c.call(ctx, "getOpenOrders", uint64(perpId), uint64(accountId))
	if err != nil {
		return nil, err
	}
	ids := vals[0].([]uint64)
	orderTypes := vals[1].([]uint8)
	prices := vals[2].([]*big.Int)
	lots := vals[3].([]*big.Int)
	expiries := vals[4].([]uint64)

	orders := make([]types.Order, 0, len(ids))
	for i := range ids {
		orders = append(orders, types.Order{
			Id:          int64(ids[i]),
			PerpId:      perpId,
			AccountId:   accountId,
			Type:        types.OrderType(orderTypes[i]),
			Status:      types.OrderStatusOpen,
			PricePNS:    prices[i],
			LotLNS:      lots[i],
			ExpiryBlock: int64(expiries[i]),
		})
	}
	return orders, nil
}

func (c *Client) GetVolumeAtBookPrice(ctx context.Context, perpId int64, ons *big.Int) (*big.Int, error) {
	vals, err := c.call(ctx, "getVolumeAtBookPrice", uint64(perpId), ons)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

func (c *Client) GetNextPriceBelowWithOrders(ctx context.Context, perpId int64, ons *big.Int) (*big.Int, error) {
	vals, err := c.call(ctx, "getNextPriceBelowWithOrders", uint64(perpId), ons)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

func (c *Client) GetTakerFee(ctx context.Context) (*big.Int, error) {
	vals, err := c.call(ctx, "getTakerFee")
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

func (c *Client) GetMakerFee(ctx context.Context) (*big.Int, error) {
	vals, err := c.call(ctx, "getMakerFee")
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}
