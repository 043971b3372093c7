package api

// Wire types for the REST surface. History records carry API-side ids
// which are a different namespace from contract order ids; they are kept
// in ApiId fields so they cannot be passed where a contract id is
// expected.

type ExchangeContext struct {
	Chain     ChainInfo    `json:"chain"`
	Markets   []MarketInfo `json:"markets"`
	Tokens    []TokenInfo  `json:"tokens"`
	Instances []string     `json:"instances"`
	Features  []string     `json:"features"`
}

type ChainInfo struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

type MarketInfo struct {
	Id     int64        `json:"id"`
	Symbol string       `json:"symbol"`
	Config MarketConfig `json:"config"`
}

type MarketConfig struct {
	PriceDecimals     uint8   `json:"price_decimals"`
	LotDecimals       uint8   `json:"lot_decimals"`
	MaintenanceMargin float64 `json:"maintenance_margin"`
	InitialMargin     float64 `json:"initial_margin"`
	MakerFeeBps       int64   `json:"maker_fee_bps"`
	TakerFeeBps       int64   `json:"taker_fee_bps"`
	MaxLeverage       float64 `json:"max_leverage"`
}

type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type candlesResponse struct {
	MarketId   int64        `json:"mt"`
	At         int64        `json:"at"`
	Resolution int64        `json:"r"`
	D          []candleWire `json:"d"`
}

type candleWire struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	C float64 `json:"c"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	V float64 `json:"v"`
	N int64   `json:"n"`
}

type Announcement struct {
	Id      int64  `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	StartTs int64  `json:"start_ts"`
	EndTs   int64  `json:"end_ts"`
}

type announcementsResponse struct {
	Ver    int64          `json:"ver"`
	Active []Announcement `json:"active"`
}

// HistoryFill is one REST fill record.
type HistoryFill struct {
	ApiId     string `json:"id"`
	MarketId  int64  `json:"mt"`
	AccountId int64  `json:"ac"`
	Side      string `json:"sd"` // maker | taker
	PricePNS  string `json:"p"`
	LotLNS    string `json:"l"`
	FeeCNS    string `json:"f"`
	Block     int64  `json:"bn"`
	Ts        int64  `json:"t"`
}

// HistoryOrder is one REST order-history record. ApiId is NOT a contract
// order id.
type HistoryOrder struct {
	ApiId    string `json:"id"`
	MarketId int64  `json:"mt"`
	Type     int    `json:"ot"`
	Status   string `json:"st"`
	PricePNS string `json:"p"`
	LotLNS   string `json:"l"`
	Ts       int64  `json:"t"`
}

type HistoryPosition struct {
	ApiId      string `json:"id"`
	MarketId   int64  `json:"mt"`
	Type       int    `json:"pt"`
	Status     string `json:"st"`
	EntryPNS   string `json:"ep"`
	LotLNS     string `json:"l"`
	DepositCNS string `json:"d"`
	PnlCNS     string `json:"pnl"`
	Ts         int64  `json:"t"`
}

type HistoryAccountEvent struct {
	ApiId     string `json:"id"`
	Kind      string `json:"k"` // deposit | withdraw | funding | fee
	AmountCNS string `json:"a"`
	Ts        int64  `json:"t"`
}

type pagedResponse[T any] struct {
	D  []T    `json:"d"`
	Np string `json:"np"`
}

type authPayloadRequest struct {
	ChainId int64  `json:"chain_id"`
	Address string `json:"address"`
}

type authPayloadResponse struct {
	Message  string `json:"message"`
	Nonce    string `json:"nonce"`
	IssuedAt string `json:"issued_at"`
	Mac      string `json:"mac"`
}

type authConnectRequest struct {
	ChainId   int64  `json:"chain_id"`
	Address   string `json:"address"`
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	IssuedAt  string `json:"issued_at"`
	Mac       string `json:"mac"`
	Signature string `json:"signature"`
	RefCode   string `json:"ref_code,omitempty"`
}

type authConnectResponse struct {
	Nonce string `json:"nonce"`
}
