package config

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// FeeDenomination selects which asset the network fee is expected to be
// debited from. Jupiter normally charges fees in SOL, but fee-abstraction
// routes can pay them out of the source token.
type FeeDenomination string

const (
	FeeNative FeeDenomination = "native"
	FeeSource FeeDenomination = "source"
)

type Config struct {
	RPCURL          string          `mapstructure:"rpc_url"`
	RPCFallbackURL  string          `mapstructure:"rpc_fallback_url"`
	JupiterBaseURL  string          `mapstructure:"jupiter_base_url"`
	JupiterAPIKey   string          `mapstructure:"jupiter_api_key"`
	WalletFile      string          `mapstructure:"wallet_file"`
	LedgerPath      string          `mapstructure:"ledger_path"`
	SlippageBps     int             `mapstructure:"slippage_bps"`
	QuoteTTLSec     int             `mapstructure:"quote_ttl_sec"`
	ConfirmTimeout  int             `mapstructure:"confirm_timeout_sec"`
	FeeDenomination FeeDenomination `mapstructure:"fee_denomination"`
	DebugLogging    bool            `mapstructure:"debug_logging"`
}

const (
	DefaultRPCURL         = "https://api.mainnet-beta.solana.com"
	DefaultJupiterBaseURL = "https://lite-api.jup.ag"
	DefaultLedgerPath     = "transactions.csv"
	DefaultWalletFile     = "wallet.json"
	DefaultSlippageBps    = 50
	DefaultQuoteTTLSec    = 20
	DefaultConfirmTimeout = 60
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"rpc_url":             DefaultRPCURL,
		"jupiter_base_url":    DefaultJupiterBaseURL,
		"ledger_path":         DefaultLedgerPath,
		"wallet_file":         DefaultWalletFile,
		"slippage_bps":        DefaultSlippageBps,
		"quote_ttl_sec":       DefaultQuoteTTLSec,
		"confirm_timeout_sec": DefaultConfirmTimeout,
		"fee_denomination":    string(FeeNative),
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional: defaults plus environment cover the
		// common single-wallet setup.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSec) * time.Second
}

func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeout) * time.Second
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("rpc_url is empty")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	if cfg.RPCFallbackURL != "" {
		if err := validateURLWithCache(cfg.RPCFallbackURL, "http"); err != nil {
			return errors.New("invalid fallback RPC URL protocol")
		}
	}
	if err := validateURLWithCache(cfg.JupiterBaseURL, "http"); err != nil {
		return errors.New("invalid Jupiter base URL protocol")
	}
	if cfg.WalletFile == "" {
		return errors.New("missing wallet_file in configuration")
	}
	if cfg.LedgerPath == "" {
		return errors.New("missing ledger_path in configuration")
	}
	switch cfg.FeeDenomination {
	case FeeNative, FeeSource:
	default:
		return errors.New("fee_denomination must be \"native\" or \"source\"")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.SlippageBps <= 0 {
		return errors.New("invalid slippage_bps")
	}
	if cfg.QuoteTTLSec <= 0 {
		return errors.New("invalid quote_ttl_sec")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("invalid confirm_timeout_sec")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("JUPITER_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if env := v.GetString("RPC_URL"); env != "" {
		cfg.RPCURL = env
	}
	if env := v.GetString("RPC_FALLBACK_URL"); env != "" {
		cfg.RPCFallbackURL = env
	}
	if env := v.GetString("JUPITER_API_KEY"); env != "" {
		cfg.JupiterAPIKey = env
	}
	if env := v.GetString("WALLET_FILE"); env != "" {
		cfg.WalletFile = env
	}
	if env := v.GetString("LEDGER_PATH"); env != "" {
		cfg.LedgerPath = env
	}
	return nil
}
