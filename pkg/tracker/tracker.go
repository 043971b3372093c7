// Package tracker maintains an in-memory snapshot of the trading
// account, fed one-directionally by the trading websocket. The tracker
// subscribes to the client; the client never references the tracker.
package tracker

import (
	"encoding/json"
	"math/big"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"perplbot/pkg/codec"
	"perplbot/pkg/liqsim"
	"perplbot/pkg/types"
	"perplbot/pkg/ws"
)

type Tracker struct {
	mu sync.RWMutex

	account        *types.Account
	walletAccounts []types.Account
	positions      map[int64]types.Position
	orders         map[int64]types.Order

	lastUpdate time.Time
	logger     *log.Entry
}

func New() *Tracker {
	return &Tracker{
		positions: make(map[int64]types.Position),
		orders:    make(map[int64]types.Order),
		logger:    log.WithFields(log.Fields{"mod": "tracker"}),
	}
}

// Attach registers the tracker's handlers on a trading-socket client.
// Call before Connect so the first snapshots are not missed.
func (t *Tracker) Attach(c *ws.Client) {
	c.On(ws.EventWallet, t.onWallet)
	c.On(ws.EventOrders, t.onOrders)
	c.On(ws.EventPositions, t.onPositions)
	c.On(ws.EventFills, t.onFills)
}

// wire shapes for the tracked streams

type walletAccountWire struct {
	Id         int64  `json:"id"`
	Addr       string `json:"addr"`
	BalanceCNS string `json:"b"`
	LockedCNS  string `json:"lb"`
}

type walletFrame struct {
	D []walletAccountWire `json:"d"`
}

type orderWire struct {
	Id     int64  `json:"id"`
	Pid    int64  `json:"pid"`
	Aid    int64  `json:"aid"`
	Type   uint8  `json:"t"`
	Status string `json:"st"`
	Price  string `json:"p"`
	Lot    string `json:"l"`
	Filled string `json:"fil"`
	Lev    int64  `json:"lev"`
	Expiry int64  `json:"exp"`
	Remove bool   `json:"r,omitempty"`
}

type ordersFrame struct {
	D []orderWire `json:"d"`
}

type positionWire struct {
	Id      int64  `json:"id"`
	Pid     int64  `json:"pid"`
	Aid     int64  `json:"aid"`
	Type    uint8  `json:"pt"`
	Status  string `json:"st"`
	Entry   string `json:"ep"`
	Lot     string `json:"l"`
	Deposit string `json:"dep"`
	Pnl     string `json:"pnl"`
}

type positionsFrame struct {
	D []positionWire `json:"d"`
}

func parseBig(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

func (t *Tracker) touch() {
	t.lastUpdate = time.Now()
}

func (t *Tracker) onWallet(e ws.Event) {
	var f walletFrame
	if err := json.Unmarshal(e.Data, &f); err != nil {
		t.logger.Warnf("fail to decode wallet frame: %v", err)
		return
	}
	accounts := make([]types.Account, 0, len(f.D))
	for _, w := range f.D {
		accounts = append(accounts, types.Account{
			Id:               w.Id,
			Address:          w.Addr,
			BalanceCNS:       parseBig(w.BalanceCNS),
			LockedBalanceCNS: parseBig(w.LockedCNS),
		})
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.walletAccounts = accounts
	if len(accounts) > 0 {
		acc := accounts[0]
		t.account = &acc
	}
	t.touch()
}

func (t *Tracker) onOrders(e ws.Event) {
	var f ordersFrame
	if err := json.Unmarshal(e.Data, &f); err != nil {
		t.logger.Warnf("fail to decode orders frame: %v", err)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.Snapshot {
		t.orders = make(map[int64]types.Order)
	}
	for _, w := range f.D {
		status := types.OrderStatus(w.Status)
		if w.Remove || !status.IsOpen() {
			delete(t.orders, w.Id)
			continue
		}
		t.orders[w.Id] = types.Order{
			Id:          w.Id,
			PerpId:      w.Pid,
			AccountId:   w.Aid,
			Type:        types.OrderType(w.Type),
			Status:      status,
			PricePNS:    parseBig(w.Price),
			LotLNS:      parseBig(w.Lot),
			FilledLNS:   parseBig(w.Filled),
			LeverageHdt: w.Lev,
			ExpiryBlock: w.Expiry,
		}
	}
	t.touch()
}

func (t *Tracker) onPositions(e ws.Event) {
	var f positionsFrame
	if err := json.Unmarshal(e.Data, &f); err != nil {
		t.logger.Warnf("fail to decode positions frame: %v", err)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.Snapshot {
		t.positions = make(map[int64]types.Position)
	}
	for _, w := range f.D {
		status := types.PositionStatus(w.Status)
		if status != types.PositionStatusOpen {
			delete(t.positions, w.Id)
			continue
		}
		t.positions[w.Id] = types.Position{
			Id:            w.Id,
			PerpId:        w.Pid,
			AccountId:     w.Aid,
			Type:          types.PositionType(w.Type),
			Status:        status,
			EntryPricePNS: parseBig(w.Entry),
			LotLNS:        parseBig(w.Lot),
			DepositCNS:    parseBig(w.Deposit),
			PnlCNS:        parseBig(w.Pnl),
		}
	}
	t.touch()
}

func (t *Tracker) onFills(e ws.Event) {
	// fills carry no tracked state beyond freshness; position and order
	// effects arrive on their own streams
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()
}

// snapshot reads

func (t *Tracker) Account() *types.Account {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.account == nil {
		return nil
	}
	acc := *t.account
	return &acc
}

func (t *Tracker) WalletAccounts() []types.Account {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]types.Account(nil), t.walletAccounts...)
}

func (t *Tracker) Positions() []types.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

func (t *Tracker) Position(positionId int64) (types.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[positionId]
	return p, ok
}

func (t *Tracker) Orders() []types.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o)
	}
	return out
}

func (t *Tracker) Order(orderId int64) (types.Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.orders[orderId]
	return o, ok
}

// derived reads, computed on demand

// Balance returns (balance, locked, available) in display units.
func (t *Tracker) Balance() (balance, locked, available float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.account == nil {
		return 0, 0, 0
	}
	balance = codec.CNSToAmount(t.account.BalanceCNS)
	locked = codec.CNSToAmount(t.account.LockedBalanceCNS)
	return balance, locked, balance - locked
}

// TotalUnrealizedPnlCNS sums unrealized pnl across open positions.
func (t *Tracker) TotalUnrealizedPnlCNS() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := new(big.Int)
	for _, p := range t.positions {
		if p.PnlCNS != nil {
			total.Add(total, p.PnlCNS)
		}
	}
	return total
}

// TotalEquityCNS is balance plus total unrealized pnl.
func (t *Tracker) TotalEquityCNS() *big.Int {
	pnl := t.TotalUnrealizedPnlCNS()
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.account != nil && t.account.BalanceCNS != nil {
		pnl.Add(pnl, t.account.BalanceCNS)
	}
	return pnl
}

// AtRisk reports whether any open position's distance to its closed-form
// liquidation price falls below thresholdPct of the current mark. marks
// maps perpetual id to mark PNS; decimals maps perpetual id to
// (priceDecimals, lotDecimals).
func (t *Tracker) AtRisk(marks map[int64]*big.Int, decimals map[int64][2]uint8, maintenanceMargin, thresholdPct float64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.positions {
		mark, ok := marks[p.PerpId]
		if !ok {
			continue
		}
		dec, ok := decimals[p.PerpId]
		if !ok {
			continue
		}
		entry := codec.PNSToPrice(p.EntryPricePNS, dec[0])
		size := codec.LNSToLot(p.LotLNS, dec[1])
		collateral := codec.CNSToAmount(p.DepositCNS)
		markPrice := codec.PNSToPrice(mark, dec[0])
		if size == 0 || markPrice == 0 {
			continue
		}
		liq := liqsim.ClosedFormLiqPrice(entry, size, collateral, maintenanceMargin, p.Type == types.PositionLong)
		distancePct := (markPrice - liq) / markPrice * 100
		if distancePct < 0 {
			distancePct = -distancePct
		}
		if distancePct < thresholdPct {
			return true
		}
	}
	return false
}

// IsStale reports whether the snapshot is older than maxAge and the
// caller should force a contract refresh.
func (t *Tracker) IsStale(maxAge time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastUpdate.IsZero() {
		return true
	}
	return time.Since(t.lastUpdate) > maxAge
}
