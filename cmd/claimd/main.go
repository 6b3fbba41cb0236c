package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/adapter/distribution"
	"github.com/couchcryptid/capyquest-claim/internal/adapter/ethereum"
	httpadapter "github.com/couchcryptid/capyquest-claim/internal/adapter/http"
	"github.com/couchcryptid/capyquest-claim/internal/adapter/ipapi"
	kafkaadapter "github.com/couchcryptid/capyquest-claim/internal/adapter/kafka"
	"github.com/couchcryptid/capyquest-claim/internal/adapter/mapbox"
	"github.com/couchcryptid/capyquest-claim/internal/chain"
	"github.com/couchcryptid/capyquest-claim/internal/claim"
	"github.com/couchcryptid/capyquest-claim/internal/config"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/location"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
	"github.com/couchcryptid/capyquest-claim/internal/session"
	"github.com/couchcryptid/capyquest-claim/internal/wallet"
)

const geocodeCacheTTL = 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "claimd:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bridge, err := ethereum.DialBridge(ctx, cfg.WalletBridgeURL, logger.Named("bridge"))
	if err != nil {
		return fmt.Errorf("dial wallet bridge: %w", err)
	}
	defer bridge.Close()

	reader, err := ethereum.DialReader(ctx, cfg.ChainRPCURL, cfg.ReceiptPollInterval, logger.Named("chain"))
	if err != nil {
		return fmt.Errorf("dial chain rpc: %w", err)
	}
	defer reader.Close()

	guard := chain.NewGuard(bridge, cfg.Network, cfg.NetworkSettleDelay, clock, logger.Named("guard"), metrics)

	sessions := session.NewManager(cfg.SessionCacheSize, cfg.SessionTTL, platformFactory(cfg, clock, logger), logger.Named("session"), metrics)

	// Reverse geocoding of target locations (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger.Named("mapbox"), metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, geocodeCacheTTL, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled",
			zap.Int("cache_size", cfg.MapboxCacheSize),
			zap.Duration("timeout", cfg.MapboxTimeout))
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	catalog := distribution.NewCatalog(cfg.TargetsURL, cfg.TargetsCacheTTL, geocoder, logger.Named("catalog"), metrics)

	refresher := wallet.NewRefresher(reader, bridge, wallet.Token{
		Address:  cfg.TokenContract,
		Symbol:   cfg.TokenSymbol,
		Decimals: cfg.TokenDecimals,
		ImageURL: cfg.TokenImageURL,
	}, cfg.BalanceRefreshPeriod, clock, logger.Named("wallet"), metrics)

	deps := claim.Deps{
		Targets:   catalog,
		Wallet:    bridge,
		Reader:    reader,
		Guard:     guard,
		Refresher: refresher,
	}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger.Named("kafka"))
		deps.Events = writer
		logger.Info("claim events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaClaimTopic))
	}

	orch := claim.New(claim.Config{
		RequiredChainID:     cfg.Network.ChainID,
		ClaimContract:       cfg.ClaimContract,
		TokenContract:       cfg.TokenContract,
		NativeDecimals:      cfg.Network.Currency.Decimals,
		ThresholdMeters:     cfg.ClaimRadiusMeters,
		ConfirmationTimeout: cfg.ConfirmationTimeout,
	}, deps, logger.Named("claim"), metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.ConfirmationTimeout+time.Minute, httpadapter.Deps{
		Sessions:        sessions,
		Claims:          orch,
		Targets:         catalog,
		Wallet:          refresher,
		Guard:           guard,
		Ready:           refresher,
		ThresholdMeters: cfg.ClaimRadiusMeters,
		JWTSecret:       []byte(cfg.JWTSecret),
	}, logger.Named("http"))

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	go func() {
		if err := refresher.Run(ctx, sessions.Addresses); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("wallet refresher stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// platformFactory picks where session fixes come from.
func platformFactory(cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) session.PlatformFactory {
	switch cfg.LocationSource {
	case config.LocationSourceIPAPI:
		// ip-api rate limits per source address, so sessions share one client.
		shared := ipapi.NewClient(cfg.IPAPIURL, cfg.IPAPIRatePerMinute, clock, logger.Named("ipapi"))
		return func() domain.LocationPlatform { return shared }
	case config.LocationSourceStatic:
		at := *cfg.LocationStatic
		return func() domain.LocationPlatform { return location.NewStaticPlatform(at) }
	case config.LocationSourceNone:
		return nil
	default:
		return func() domain.LocationPlatform { return location.NewReportedPlatform(clock) }
	}
}
