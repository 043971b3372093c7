package ws

import "encoding/json"

// Message type codes used by both sockets.
const (
	mtPing              = 1
	mtPong              = 2
	mtAuth              = 4
	mtSubscribe         = 5
	mtSubscribeRes      = 6
	mtMarketState       = 9
	mtBookSnapshot      = 15
	mtBookUpdate        = 16
	mtTradesSnapshot    = 17
	mtTradesUpdate      = 18
	mtWalletSnapshot    = 19
	mtOrderRequest      = 22
	mtOrdersSnapshot    = 23
	mtOrdersUpdate      = 24
	mtFillsUpdate       = 25
	mtPositionsSnapshot = 26
	mtPositionsUpdate   = 27
	mtHeartbeat         = 100
)

// Close code sent by the server when the trading session is no longer
// valid; the client must not reconnect on it.
const closeCodeAuthExpired = 3401

// Event names emitted to subscribers.
const (
	EventMarketState = "market-state"
	EventOrderBook   = "order-book"
	EventTrades      = "trades"
	EventWallet      = "wallet"
	EventOrders      = "orders"
	EventFills       = "fills"
	EventPositions   = "positions"
	EventHeartbeat   = "heartbeat"
	EventAuthExpired = "auth-expired"
	EventFatal       = "fatal"
)

// Event is one demultiplexed websocket message. Data is the raw frame so
// consumers decode only the streams they care about.
type Event struct {
	Type     string
	Mt       int
	Snapshot bool
	Data     json.RawMessage
}

type frame struct {
	Mt *int `json:"mt"`
}

type pingMsg struct {
	Mt int   `json:"mt"`
	T  int64 `json:"t"`
}

type authMsg struct {
	Mt      int    `json:"mt"`
	ChainId int64  `json:"chain_id"`
	Nonce   string `json:"nonce"`
	Ses     string `json:"ses"`
}

type subEntry struct {
	Stream    string `json:"stream"`
	Subscribe bool   `json:"subscribe"`
}

type subRequest struct {
	Mt   int        `json:"mt"`
	Subs []subEntry `json:"subs"`
}

type subConfirm struct {
	Stream string `json:"stream"`
	Sid    int64  `json:"sid"`
}

type subResponse struct {
	Mt   int          `json:"mt"`
	Subs []subConfirm `json:"subs"`
}

// Websocket order type codes; these differ from the contract's
// descriptor codes.
const (
	wsOpenLong   = 1
	wsOpenShort  = 2
	wsCloseLong  = 3
	wsCloseShort = 4
	wsCancel     = 5
)

// orderRequest is an outbound mt=22 frame. Rq is a client-chosen,
// strictly increasing request id used to correlate acks.
type orderRequest struct {
	Mt  int    `json:"mt"`
	Rq  int64  `json:"rq"`
	T   int    `json:"t"`
	Pid int64  `json:"pid"`
	Aid int64  `json:"aid"`
	P   string `json:"p,omitempty"`
	L   string `json:"l"`
	Lev int64  `json:"lev,omitempty"`
	Fl  uint8  `json:"fl"`
	Lp  int64  `json:"lp,omitempty"` // linked position id, required on closes
	Lb  int64  `json:"lb"`           // last-execution-block bound
	Oid int64  `json:"oid,omitempty"`
}

// OrderUpdate is the subset of an orders snapshot/update entry the
// client itself consumes for ack correlation; the state tracker decodes
// order entries with its own wire type.
type OrderUpdate struct {
	Rq     int64  `json:"rq,omitempty"`
	Id     int64  `json:"id"`
	Pid    int64  `json:"pid"`
	Status string `json:"st"`
	Remove bool   `json:"r,omitempty"`
}

type ordersFrame struct {
	Mt     int           `json:"mt"`
	Orders []OrderUpdate `json:"d"`
}
