package core

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"perplbot/config"
	"perplbot/pkg/agent"
	"perplbot/pkg/api"
	"perplbot/pkg/contract"
	"perplbot/pkg/liqsim"
	"perplbot/pkg/router"
	"perplbot/pkg/s3client"
	"perplbot/pkg/tracker"
	"perplbot/pkg/utils"
	"perplbot/pkg/ws"
)

// lastBlockMargin is added to the chain head for order last-execution
// bounds.
const lastBlockMargin = 100

// App wires the core components together for the front-ends.
type App struct {
	Config  *config.Config
	Rest    *api.Client
	Chain   *contract.Client
	Eth     *ethclient.Client
	Tracker *tracker.Tracker
	Router  *router.Router
	Sim     *liqsim.Simulator
	Service *agent.CoreService

	Market  *ws.Client
	Trading *ws.Client

	operatorKey  *ecdsa.PrivateKey
	operatorAddr common.Address
	accountId    int64
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	log.Info("🦾 Bootstrapping...")

	operatorKey, err := crypto.HexToECDSA(cfg.OperatorPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("fail to parse operator key: %w", err)
	}
	operatorAddr := crypto.PubkeyToAddress(operatorKey.PublicKey)

	var ownerKey *ecdsa.PrivateKey
	if cfg.OwnerPrivateKey != "" {
		ownerKey, err = crypto.HexToECDSA(cfg.OwnerPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("fail to parse owner key: %w", err)
		}
	}

	eth, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("fail to dial rpc: %w", err)
	}

	chain, err := contract.New(eth, contract.Options{
		ChainId:     cfg.ChainId,
		Exchange:    common.HexToAddress(cfg.ExchangeAddress),
		Proxy:       common.HexToAddress(cfg.DelegatedAccountAddress),
		OperatorKey: operatorKey,
		OwnerKey:    ownerKey,
	})
	if err != nil {
		return nil, err
	}

	rest := api.NewClient(cfg.ApiBaseUrl, cfg.ChainId)
	if err := rest.Authenticate(ctx, operatorAddr.Hex(), api.PersonalSigner(operatorKey)); err != nil {
		// reads fall back to the contract; writes go through the proxy
		log.Warnf("fail to authenticate api session, using contract paths: %v", err)
	}

	// trading account: the proxy account when configured, else the
	// operator's own
	tradingAddr := operatorAddr
	if cfg.DelegatedAccountAddress != "" {
		tradingAddr = common.HexToAddress(cfg.DelegatedAccountAddress)
	}
	account, err := chain.GetAccountByAddress(ctx, tradingAddr)
	if err != nil {
		return nil, fmt.Errorf("fail to resolve trading account: %w", err)
	}
	log.Infof("trading account %v (%v)", account.Id, tradingAddr.Hex())

	markets, err := loadMarkets(ctx, rest)
	if err != nil {
		return nil, err
	}

	var sink liqsim.ReportSink
	if cfg.Archive != nil {
		s3, err := s3client.New(
			utils.LoadEnvWithDefault("AWS_ACCESS_KEY", ""),
			utils.LoadEnvWithDefault("AWS_SECRET_KEY", ""),
			cfg.Archive.Region, cfg.Archive.Bucket,
		)
		if err != nil {
			log.Warnf("fail to init report archive, continuing without: %v", err)
		} else {
			sink = s3
		}
	}

	sim := liqsim.NewSimulator(liqsim.Config{
		PriceRangePct:          cfg.Liquidation.PriceRangePct,
		PriceSteps:             cfg.Liquidation.PriceSteps,
		BinarySearchIterations: cfg.Liquidation.BinarySearchIterations,
		AnvilTimeout:           cfg.Liquidation.AnvilTimeout(),
		MaintenanceMargin:      cfg.Liquidation.MaintenanceMargin,
	}, cfg.AnvilPath, cfg.RpcUrl, common.HexToAddress(cfg.ExchangeAddress), sink)

	rt := router.New(chain, rest, cfg.UseApi)
	tr := tracker.New()

	app := &App{
		Config:       cfg,
		Rest:         rest,
		Chain:        chain,
		Eth:          eth,
		Tracker:      tr,
		Router:       rt,
		Sim:          sim,
		operatorKey:  operatorKey,
		operatorAddr: operatorAddr,
		accountId:    account.Id,
	}
	app.Service = &agent.CoreService{
		Router:      rt,
		Tracker:     tr,
		Simulator:   sim,
		Rest:        rest,
		AccountId:   account.Id,
		Markets_:    markets,
		LastBlockFn: app.lastBlock,
		DebugTxFn:   app.inspectTx,
	}
	return app, nil
}

func loadMarkets(ctx context.Context, rest *api.Client) (map[string]agent.MarketMeta, error) {
	ec, err := rest.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to load exchange context: %w", err)
	}
	markets := make(map[string]agent.MarketMeta, len(ec.Markets))
	for _, m := range ec.Markets {
		markets[m.Symbol] = agent.MarketMeta{
			Id:            m.Id,
			Symbol:        m.Symbol,
			PriceDecimals: m.Config.PriceDecimals,
			LotDecimals:   m.Config.LotDecimals,
		}
		log.Infof("market '%v' registered (id %v)", m.Symbol, m.Id)
	}
	return markets, nil
}

func (a *App) lastBlock(ctx context.Context) (int64, error) {
	head, err := a.Eth.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return int64(head) + lastBlockMargin, nil
}

// inspectTx backs the debug_transaction tool: status, gas, and the
// decoded revert reason when the call failed.
func (a *App) inspectTx(ctx context.Context, hash string) (any, error) {
	h := common.HexToHash(hash)
	receipt, err := a.Eth.TransactionReceipt(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch receipt: %w", err)
	}
	out := map[string]any{
		"hash":    hash,
		"status":  receipt.Status,
		"block":   receipt.BlockNumber.Int64(),
		"gasUsed": receipt.GasUsed,
	}
	if receipt.Status == 1 {
		return out, nil
	}

	// replay the call at its block to recover the revert reason
	tx, _, err := a.Eth.TransactionByHash(ctx, h)
	if err != nil {
		return out, nil
	}
	signer := ethtypes.LatestSignerForChainID(big.NewInt(a.Config.ChainId))
	from, err := ethtypes.Sender(signer, tx)
	if err == nil {
		msg := ethereum.CallMsg{
			From: from, To: tx.To(), Gas: tx.Gas(),
			GasPrice: tx.GasPrice(), Value: tx.Value(), Data: tx.Data(),
		}
		if _, callErr := a.Eth.CallContract(ctx, msg, receipt.BlockNumber); callErr != nil {
			out["revertReason"] = callErr.Error()
		}
	}
	return out, nil
}

// NewChatLoop builds a fresh tool loop per conversation.
func (a *App) NewChatLoop() (*agent.Loop, error) {
	catalogue := agent.Catalogue(a.Service)
	model, err := agent.NewAnthropicModel(a.Config.AnthropicApiKey, a.Config.ChatbotModel, catalogue)
	if err != nil {
		return nil, err
	}
	return agent.NewLoop(model, catalogue), nil
}
