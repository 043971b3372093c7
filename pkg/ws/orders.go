package ws

import (
	"context"
	"fmt"
	"math/big"

	"perplbot/pkg/types"
)

// OrderInput describes one order submission over the trading socket.
// PricePNS nil means a market order (sent immediate-or-cancel with no
// price). LastBlock is the mandatory last-execution-block bound.
// PositionId links close orders to the position being reduced.
type OrderInput struct {
	PerpId      int64
	AccountId   int64
	PricePNS    *big.Int
	LotLNS      *big.Int
	LeverageHdt int64
	Flags       types.OrderFlags
	PositionId  int64
	LastBlock   int64
	OrderId     int64 // cancels only
}

func (c *Client) buildOrder(wsType int, in OrderInput) (orderRequest, error) {
	if in.LastBlock == 0 {
		return orderRequest{}, fmt.Errorf("ws: order requires a last-execution-block bound")
	}
	req := orderRequest{
		Mt:  mtOrderRequest,
		T:   wsType,
		Pid: in.PerpId,
		Aid: in.AccountId,
		Lev: in.LeverageHdt,
		Fl:  uint8(in.Flags),
		Lb:  in.LastBlock,
	}
	if in.LotLNS != nil {
		req.L = in.LotLNS.String()
	}
	if in.PricePNS != nil {
		req.P = in.PricePNS.String()
	} else {
		// market order: no resting price, immediate-or-cancel
		req.Fl = uint8(types.FlagImmediateOrCancel)
	}
	switch wsType {
	case wsCloseLong, wsCloseShort:
		if in.PositionId == 0 {
			return orderRequest{}, fmt.Errorf("ws: close order requires linked position id")
		}
		req.Lp = in.PositionId
	case wsCancel:
		if in.OrderId == 0 {
			return orderRequest{}, fmt.Errorf("ws: cancel requires order id")
		}
		req.Oid = in.OrderId
	}
	req.Rq = c.rq.Add(1)
	return req, nil
}

// submit is the fire-and-forget path: the frame is written and the
// request id returned for the caller to correlate later.
func (c *Client) submit(wsType int, in OrderInput) (int64, error) {
	req, err := c.buildOrder(wsType, in)
	if err != nil {
		return 0, err
	}
	if err := c.writeJSON(req); err != nil {
		return 0, err
	}
	return req.Rq, nil
}

func (c *Client) OpenLong(in OrderInput) (int64, error)    { return c.submit(wsOpenLong, in) }
func (c *Client) OpenShort(in OrderInput) (int64, error)   { return c.submit(wsOpenShort, in) }
func (c *Client) CloseLong(in OrderInput) (int64, error)   { return c.submit(wsCloseLong, in) }
func (c *Client) CloseShort(in OrderInput) (int64, error)  { return c.submit(wsCloseShort, in) }
func (c *Client) CancelOrder(in OrderInput) (int64, error) { return c.submit(wsCancel, in) }

// submitAwait submits and blocks until an orders update carrying the
// same rq arrives, or ctx expires.
func (c *Client) submitAwait(ctx context.Context, wsType int, in OrderInput) (OrderUpdate, error) {
	req, err := c.buildOrder(wsType, in)
	if err != nil {
		return OrderUpdate{}, err
	}

	ack := make(chan OrderUpdate, 1)
	c.mu.Lock()
	c.ackCh[req.Rq] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.ackCh, req.Rq)
		c.mu.Unlock()
	}()

	if err := c.writeJSON(req); err != nil {
		return OrderUpdate{}, err
	}
	select {
	case upd := <-ack:
		return upd, nil
	case <-ctx.Done():
		return OrderUpdate{}, ctx.Err()
	case <-c.stopC:
		return OrderUpdate{}, fmt.Errorf("ws: connection closed while awaiting ack")
	}
}

func (c *Client) OpenLongAwait(ctx context.Context, in OrderInput) (OrderUpdate, error) {
	return c.submitAwait(ctx, wsOpenLong, in)
}

func (c *Client) OpenShortAwait(ctx context.Context, in OrderInput) (OrderUpdate, error) {
	return c.submitAwait(ctx, wsOpenShort, in)
}

func (c *Client) CloseLongAwait(ctx context.Context, in OrderInput) (OrderUpdate, error) {
	return c.submitAwait(ctx, wsCloseLong, in)
}

func (c *Client) CloseShortAwait(ctx context.Context, in OrderInput) (OrderUpdate, error) {
	return c.submitAwait(ctx, wsCloseShort, in)
}
