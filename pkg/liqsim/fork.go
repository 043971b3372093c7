package liqsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"perplbot/pkg/codec"
	"perplbot/pkg/contract"
	"perplbot/pkg/types"
)

var (
	ErrSlotDiscovery     = errors.New("liqsim: price slot discovery failed")
	ErrPriceVerification = errors.New("liqsim: price manipulation verification failed")
)

type Config struct {
	PriceRangePct          float64 // half-width of the sweep, percent of mark
	PriceSteps             int     // sweep points
	BinarySearchIterations int
	AnvilTimeout           time.Duration
	MaintenanceMargin      float64
}

func DefaultConfig() Config {
	return Config{
		PriceRangePct:          30,
		PriceSteps:             20,
		BinarySearchIterations: 10,
		AnvilTimeout:           30 * time.Second,
		MaintenanceMargin:      0.05,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.PriceRangePct <= 0 {
		c.PriceRangePct = d.PriceRangePct
	}
	if c.PriceSteps <= 0 {
		c.PriceSteps = d.PriceSteps
	}
	if c.BinarySearchIterations <= 0 {
		c.BinarySearchIterations = d.BinarySearchIterations
	}
	if c.AnvilTimeout <= 0 {
		c.AnvilTimeout = d.AnvilTimeout
	}
	if c.MaintenanceMargin <= 0 {
		c.MaintenanceMargin = d.MaintenanceMargin
	}
}

// Report is the outcome of one simulation: the closed-form estimate,
// the fork-verified boundary and their divergence.
type Report struct {
	PerpId    int64 `json:"perp_id"`
	AccountId int64 `json:"account_id"`
	Long      bool  `json:"long"`

	MarkPrice           float64 `json:"mark_price"`
	MathPrice           float64 `json:"math_price"`
	ForkPrice           float64 `json:"fork_price"`
	DivergenceAbs       float64 `json:"divergence_abs"`
	DivergencePct       float64 `json:"divergence_pct"`
	AlreadyLiquidatable bool    `json:"already_liquidatable"`
}

// ReportSink archives finished reports; see pkg/s3client.
type ReportSink interface {
	Put(ctx context.Context, key string, body []byte) error
}

// chainReader is the slice of the contract client the simulator reads
// through; *contract.Client satisfies it.
type chainReader interface {
	GetPerpetualInfo(ctx context.Context, perpId int64) (*types.Perpetual, error)
	GetPosition(ctx context.Context, perpId, accountId int64) (*types.Position, *big.Int, bool, error)
	PerpetualInfoCalldata(perpId int64) ([]byte, error)
}

type Simulator struct {
	cfg       Config
	anvilPath string
	forkUrl   string
	exchange  common.Address
	sink      ReportSink
	logger    *log.Entry
}

func NewSimulator(cfg Config, anvilPath, forkUrl string, exchange common.Address, sink ReportSink) *Simulator {
	cfg.applyDefaults()
	return &Simulator{
		cfg:       cfg,
		anvilPath: anvilPath,
		forkUrl:   forkUrl,
		exchange:  exchange,
		sink:      sink,
		logger:    log.WithFields(log.Fields{"mod": "liqsim"}),
	}
}

// Simulate forks the chain, discovers the packed price word, sweeps and
// binary-searches the exact fork-liquidation price, and reports the
// divergence from the closed-form estimate. The fork process is
// terminated on every exit path. Slot and offset discovery runs fresh
// per simulation; the exchange may have been upgraded since the last
// one.
func (s *Simulator) Simulate(ctx context.Context, perpId, accountId int64) (*Report, error) {
	anvil, err := StartFork(ctx, s.anvilPath, s.forkUrl, s.cfg.AnvilTimeout)
	if err != nil {
		return nil, err
	}
	defer anvil.Stop()

	eth, err := ethclient.DialContext(ctx, anvil.Url())
	if err != nil {
		return nil, fmt.Errorf("fail to dial fork: %w", err)
	}
	defer eth.Close()

	reader, err := contract.New(eth, contract.Options{Exchange: s.exchange})
	if err != nil {
		return nil, err
	}

	report, err := s.run(ctx, anvil, reader, perpId, accountId)
	if err != nil {
		return nil, err
	}
	s.archive(ctx, report)
	return report, nil
}

func (s *Simulator) archive(ctx context.Context, report *Report) {
	if s.sink == nil {
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		return
	}
	key := fmt.Sprintf("liq-reports/%v-%v-%v.json", report.PerpId, report.AccountId, time.Now().UnixMilli())
	if err := s.sink.Put(ctx, key, body); err != nil {
		s.logger.Warnf("fail to archive report: %v", err)
	}
}

func (s *Simulator) run(ctx context.Context, fork forkRPC, reader chainReader, perpId, accountId int64) (*Report, error) {
	perp, err := reader.GetPerpetualInfo(ctx, perpId)
	if err != nil {
		return nil, err
	}
	pos, markPNS, _, err := reader.GetPosition(ctx, perpId, accountId)
	if err != nil {
		return nil, err
	}
	if pos.Type == types.PositionNone {
		return nil, fmt.Errorf("liqsim: no open position for perp %v account %v", perpId, accountId)
	}
	long := pos.Type == types.PositionLong

	entry := codec.PNSToPrice(pos.EntryPricePNS, perp.PriceDecimals)
	size := codec.LNSToLot(pos.LotLNS, perp.LotDecimals)
	collateral := codec.CNSToAmount(pos.DepositCNS)
	mathPrice := ClosedFormLiqPrice(entry, size, collateral, s.cfg.MaintenanceMargin, long)

	report := &Report{
		PerpId:    perpId,
		AccountId: accountId,
		Long:      long,
		MarkPrice: codec.PNSToPrice(markPNS, perp.PriceDecimals),
		MathPrice: mathPrice,
	}

	// already underwater: the current mark is the boundary
	liqNow, err := s.isLiquidatable(ctx, reader, perpId, accountId)
	if err != nil {
		return nil, err
	}
	if liqNow {
		report.AlreadyLiquidatable = true
		report.ForkPrice = report.MarkPrice
		report.DivergenceAbs = report.ForkPrice - report.MathPrice
		if report.MathPrice != 0 {
			report.DivergencePct = report.DivergenceAbs / report.MathPrice * 100
		}
		return report, nil
	}

	slot, offsets, err := s.discoverPriceWord(ctx, fork, reader, perpId)
	if err != nil {
		return nil, err
	}

	probe := func(ctx context.Context, pricePNS *big.Int) (bool, error) {
		snapId, err := fork.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		liq, perr := s.probeAtPrice(ctx, fork, reader, perpId, accountId, slot, offsets, pricePNS)
		if rerr := fork.Revert(ctx, snapId); rerr != nil && perr == nil {
			perr = rerr
		}
		return liq, perr
	}

	points, err := sweep(ctx, markPNS, s.cfg.PriceRangePct, s.cfg.PriceSteps, probe)
	if err != nil {
		return nil, err
	}
	safe, liquidatable, err := findBoundary(points, long)
	if err != nil {
		return nil, err
	}
	forkPNS, err := binarySearch(ctx, safe, liquidatable, s.cfg.BinarySearchIterations, probe)
	if err != nil {
		return nil, err
	}

	report.ForkPrice = codec.PNSToPrice(forkPNS, perp.PriceDecimals)
	report.DivergenceAbs = report.ForkPrice - report.MathPrice
	if report.MathPrice != 0 {
		report.DivergencePct = report.DivergenceAbs / report.MathPrice * 100
	}
	return report, nil
}

// probeAtPrice writes the price word and applies the contract's own
// solvency rule via getPosition. Caller handles snapshot/revert.
func (s *Simulator) probeAtPrice(ctx context.Context, fork forkRPC, reader chainReader, perpId, accountId int64, slot common.Hash, offsets fieldOffsets, pricePNS *big.Int) (bool, error) {
	if err := s.writePrice(ctx, fork, slot, offsets, pricePNS); err != nil {
		return false, err
	}
	return s.isLiquidatable(ctx, reader, perpId, accountId)
}

// isLiquidatable: equity < maintenanceMargin * |position value|, all in
// CNS. getPosition supplies the contract's own equity inputs and mark.
func (s *Simulator) isLiquidatable(ctx context.Context, reader chainReader, perpId, accountId int64) (bool, error) {
	pos, markPNS, _, err := reader.GetPosition(ctx, perpId, accountId)
	if err != nil {
		return false, err
	}
	equity := pos.EquityCNS()
	value := codec.PositionValueCNS(markPNS, pos.LotLNS)
	if value.Sign() < 0 {
		value.Neg(value)
	}
	// maintenance requirement in parts-per-million to stay integer
	mPPM := big.NewInt(int64(s.cfg.MaintenanceMargin * 1e6))
	required := new(big.Int).Mul(value, mPPM)
	required.Div(required, big.NewInt(1e6))
	return equity.Cmp(required) < 0, nil
}
