package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/ethereum/go-ethereum/common"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// Location sources accepted by LOCATION_SOURCE.
const (
	LocationSourceReported = "reported"
	LocationSourceIPAPI    = "ipapi"
	LocationSourceStatic   = "static"
	LocationSourceNone     = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaClaimTopic string

	// Wallet and chain.
	WalletBridgeURL      string
	ChainRPCURL          string
	Network              domain.Network
	ClaimContract        common.Address
	TokenContract        common.Address
	TokenSymbol          string
	TokenDecimals        int
	TokenImageURL        string
	NetworkSettleDelay   time.Duration
	ConfirmationTimeout  time.Duration
	ReceiptPollInterval  time.Duration
	BalanceRefreshPeriod time.Duration

	// Claim gate.
	ClaimRadiusMeters float64

	// Location platform.
	LocationSource     string
	LocationStatic     *domain.Coordinate
	IPAPIURL           string
	IPAPIRatePerMinute int

	// Target catalog.
	TargetsURL      string
	TargetsCacheTTL time.Duration

	// Mapbox reverse geocoding of target locations.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Sessions and auth.
	JWTSecret        string
	SessionTTL       time.Duration
	SessionCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", "127.0.0.1:8787"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:    sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaClaimTopic: sharedcfg.EnvOrDefault("KAFKA_CLAIM_TOPIC", "nft-claims"),

		WalletBridgeURL: sharedcfg.EnvOrDefault("WALLET_BRIDGE_URL", "http://127.0.0.1:1248"),
		ChainRPCURL:     sharedcfg.EnvOrDefault("CHAIN_RPC_URL", "https://rpc.api.moonbase.moonbeam.network"),
		Network: domain.Network{
			ChainID: sharedcfg.EnvOrDefault("CHAIN_ID", "0x507"),
			Name:    sharedcfg.EnvOrDefault("CHAIN_NAME", "Moonbase Alpha"),
			Currency: domain.NativeCurrency{
				Name:   sharedcfg.EnvOrDefault("CHAIN_CURRENCY_NAME", "DEV"),
				Symbol: sharedcfg.EnvOrDefault("CHAIN_CURRENCY_SYMBOL", "DEV"),
			},
			ExplorerURLs: splitList(sharedcfg.EnvOrDefault("CHAIN_EXPLORER_URL", "https://moonbase.moonscan.io/")),
		},
		TokenSymbol:   sharedcfg.EnvOrDefault("TOKEN_SYMBOL", "CYC"),
		TokenImageURL: os.Getenv("TOKEN_IMAGE_URL"),

		LocationSource: sharedcfg.EnvOrDefault("LOCATION_SOURCE", LocationSourceReported),
		IPAPIURL:       sharedcfg.EnvOrDefault("IPAPI_URL", "http://ip-api.com/json/"),

		TargetsURL: os.Getenv("TARGETS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
	}
	cfg.Network.RPCURLs = []string{cfg.ChainRPCURL}

	// Waits and loop periods must be positive.
	durations := []struct {
		key      string
		def      string
		dst      *time.Duration
		positive bool
	}{
		{"NETWORK_SETTLE_DELAY", "1s", &cfg.NetworkSettleDelay, false},
		{"CONFIRMATION_TIMEOUT", "5m", &cfg.ConfirmationTimeout, true},
		{"RECEIPT_POLL_INTERVAL", "2s", &cfg.ReceiptPollInterval, true},
		{"BALANCE_REFRESH_INTERVAL", "30s", &cfg.BalanceRefreshPeriod, true},
		{"TARGETS_CACHE_TTL", "1m", &cfg.TargetsCacheTTL, false},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout, false},
		{"SESSION_TTL", "12h", &cfg.SessionTTL, false},
	}
	for _, v := range durations {
		d, err := parseDuration(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if v.positive && d == 0 {
			return nil, fmt.Errorf("invalid %s: must be greater than zero", v.key)
		}
		*v.dst = d
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"CHAIN_CURRENCY_DECIMALS", 18, &cfg.Network.Currency.Decimals},
		{"TOKEN_DECIMALS", 18, &cfg.TokenDecimals},
		{"IPAPI_RATE_PER_MINUTE", 45, &cfg.IPAPIRatePerMinute},
		{"MAPBOX_CACHE_SIZE", 1000, &cfg.MapboxCacheSize},
		{"SESSION_CACHE_SIZE", 1000, &cfg.SessionCacheSize},
	}
	for _, v := range ints {
		n, err := parsePositiveInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dst = n
	}

	radius, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("CLAIM_RADIUS_METERS", "15"), 64)
	if err != nil || radius <= 0 {
		return nil, errors.New("invalid CLAIM_RADIUS_METERS")
	}
	cfg.ClaimRadiusMeters = radius

	if cfg.ClaimContract, err = parseAddress("CLAIM_CONTRACT_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.TokenContract, err = parseAddress("TOKEN_CONTRACT_ADDRESS"); err != nil {
		return nil, err
	}

	if s := os.Getenv("LOCATION_STATIC"); s != "" {
		c, err := domain.ParseCoordinate(s)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCATION_STATIC: %w", err)
		}
		cfg.LocationStatic = &c
	}

	cfg.MapboxToken = os.Getenv("MAPBOX_TOKEN")
	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !domain.SameChain(c.Network.ChainID, c.Network.ChainID) {
		return errors.New("invalid CHAIN_ID: expected a hex quantity such as 0x507")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.KafkaEnabled && c.KafkaClaimTopic == "" {
		return errors.New("KAFKA_CLAIM_TOPIC is required when KAFKA_ENABLED is true")
	}
	switch c.LocationSource {
	case LocationSourceReported, LocationSourceIPAPI, LocationSourceNone:
	case LocationSourceStatic:
		if c.LocationStatic == nil {
			return errors.New("LOCATION_SOURCE is static but LOCATION_STATIC is not set")
		}
	default:
		return fmt.Errorf("invalid LOCATION_SOURCE %q", c.LocationSource)
	}
	if c.TargetsURL == "" {
		return errors.New("TARGETS_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseAddress(key string) (common.Address, error) {
	s := os.Getenv(key)
	if s == "" {
		return common.Address{}, fmt.Errorf("%s is required", key)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s", key)
	}
	return common.HexToAddress(s), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
