package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"perplbot/pkg/types"
	"perplbot/pkg/utils"
)

// Config carries everything the core needs. Addresses and URLs come
// from the yaml file; private keys and API credentials come from the
// environment only.
type Config struct {
	RpcUrl          string `yaml:"rpcUrl"`
	ChainId         int64  `yaml:"chainId"`
	ExchangeAddress string `yaml:"exchangeAddress"`
	CollateralToken string `yaml:"collateralToken"`

	DelegatedAccountAddress string `yaml:"delegatedAccountAddress"`

	ApiBaseUrl string `yaml:"apiBaseUrl"`
	WsUrl      string `yaml:"wsUrl"`
	UseApi     bool   `yaml:"useApi"`

	ChatbotModel string `yaml:"chatbotModel"`
	AnvilPath    string `yaml:"anvilPath"`

	Liquidation LiquidationConfig `yaml:"liquidation"`
	Archive     *ArchiveConfig    `yaml:"archive"` // optional S3 report sink

	// env-only secrets
	OwnerPrivateKey    string `yaml:"-"`
	OperatorPrivateKey string `yaml:"-"`
	AnthropicApiKey    string `yaml:"-"`
}

type LiquidationConfig struct {
	PriceRangePct          float64 `yaml:"priceRangePct"`
	PriceSteps             int     `yaml:"priceSteps"`
	BinarySearchIterations int     `yaml:"binarySearchIterations"`
	AnvilTimeoutMs         int64   `yaml:"anvilTimeoutMs"`
	MaintenanceMargin      float64 `yaml:"maintenanceMargin"`
}

func (l LiquidationConfig) AnvilTimeout() time.Duration {
	return time.Duration(l.AnvilTimeoutMs) * time.Millisecond
}

type ArchiveConfig struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
}

func LoadConfig(envName types.EnvName) (*Config, error) {
	yamlFiles := map[types.EnvName]string{
		types.EnvLocal: "perplbot.yaml",
		types.EnvDev:   "perplbot.dev.yaml",
		types.EnvProd:  "perplbot.prod.yaml",
	}
	fileName := yamlFiles[envName]
	data, err := os.ReadFile(fileName)
	if err != nil {
		log.Fatalf("fail to load config file '%s': %v", fileName, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		log.Fatalf("fail to decode config file '%v': %v", fileName, err)
	}

	config.OwnerPrivateKey = utils.LoadEnvWithDefault("OWNER_PRIVATE_KEY", "")
	config.OperatorPrivateKey = utils.LoadEnv("OPERATOR_PRIVATE_KEY")
	config.AnthropicApiKey = utils.LoadEnv("ANTHROPIC_API_KEY")

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.RpcUrl == "" {
		return fmt.Errorf("config: rpcUrl is required")
	}
	if c.ChainId == 0 {
		return fmt.Errorf("config: chainId is required")
	}
	if c.ExchangeAddress == "" {
		return fmt.Errorf("config: exchangeAddress is required")
	}
	if c.ApiBaseUrl == "" || c.WsUrl == "" {
		return fmt.Errorf("config: apiBaseUrl and wsUrl are required")
	}
	return nil
}
