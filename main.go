package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"cryptoDipBot/config"
	"cryptoDipBot/internal/adapters/binanceclient"
	"cryptoDipBot/internal/adapters/logger"
	"cryptoDipBot/internal/adapters/sqlite"
	"cryptoDipBot/internal/app"
	"cryptoDipBot/internal/ledger"
	"cryptoDipBot/internal/orderbook"
	"cryptoDipBot/internal/risk"
	"cryptoDipBot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 5. Initialize Position Ledger
	led, err := ledger.New(repo, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position ledger")
		log.Fatalf("FATAL: Failed to initialize position ledger: %v", err)
	}

	// 6. Initialize Strategy Components
	tracker, err := strategy.NewTracker(cfg.PriceRetention, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price tracker")
		log.Fatalf("FATAL: Failed to initialize price tracker: %v", err)
	}

	tiers := make([]strategy.TierConfig, 0, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		tiers = append(tiers, strategy.TierConfig{
			Tier:            i + 1,
			ThresholdPct:    t.ThresholdPct,
			LookbackMinutes: t.LookbackMinutes,
			OrderSizeUSD:    t.OrderSizeUSD,
		})
	}
	detector, err := strategy.NewTierDetector(tiers, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize dip tier detector")
		log.Fatalf("FATAL: Failed to initialize dip tier detector: %v", err)
	}

	flash, err := strategy.NewFlashCrashController(strategy.FlashCrashConfig{
		TriggerPct:       cfg.FlashCrashTriggerPct,
		RecoveryPct:      cfg.FlashRecoveryPct,
		MinInterval:      cfg.MinTimeBetweenBuys,
		FlashMinInterval: cfg.FlashMinTimeBetweenBuys,
		MaxRapidBuys:     cfg.MaxRapidBuys,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize flash-crash controller")
		log.Fatalf("FATAL: Failed to initialize flash-crash controller: %v", err)
	}

	exits, err := strategy.NewExitEvaluator(strategy.ExitConfig{
		TrailingActivationPct: cfg.TrailingActivationPct,
		TrailPct:              cfg.TrailPct,
		TakeProfitByTier:      cfg.TakeProfitByTier,
		DefaultTakeProfitPct:  cfg.DefaultTakeProfitPct,
		StopLossPct:           cfg.StopLossPct,
		MaxHold:               cfg.MaxHold,
		TimeExitMinProfitPct:  cfg.TimeExitMinProfitPct,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize exit evaluator")
		log.Fatalf("FATAL: Failed to initialize exit evaluator: %v", err)
	}

	// 7. Initialize Risk Components
	supportLevels := make(map[string][]risk.SupportLevel, len(cfg.SupportLevels))
	for symbol, levels := range cfg.SupportLevels {
		converted := make([]risk.SupportLevel, 0, len(levels))
		for _, lvl := range levels {
			converted = append(converted, risk.SupportLevel{Price: lvl.Price, Bonus: lvl.Bonus})
		}
		supportLevels[symbol] = converted
	}
	sizer, err := risk.NewSizer(risk.SizerConfig{
		Weights:        cfg.SymbolWeights,
		SupportLevels:  supportLevels,
		SupportBandPct: cfg.SupportBandPct,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position sizer")
		log.Fatalf("FATAL: Failed to initialize position sizer: %v", err)
	}

	governor, err := risk.NewGovernor(risk.GovernorConfig{
		MaxPositionUSD:   cfg.MaxPositionUSD,
		MaxTotalDeployed: cfg.MaxTotalDeployed,
		LowVolReserve:    cfg.LowVolReserve,
		HighVolReserve:   cfg.HighVolReserve,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize capital governor")
		log.Fatalf("FATAL: Failed to initialize capital governor: %v", err)
	}

	advisor, err := orderbook.NewAdvisor(binanceClient, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize order book advisor")
		log.Fatalf("FATAL: Failed to initialize order book advisor: %v", err)
	}

	// 8. Initialize Application Service
	engine, err := app.NewService(
		cfg,
		appLogger,
		binanceClient, // Pass the concrete implementation, service expects the interface
		led,
		tracker,
		detector,
		flash,
		exits,
		sizer,
		governor,
		advisor,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize engine service")
		log.Fatalf("FATAL: Failed to initialize engine service: %v", err)
	}
	appLogger.Info(context.Background(), "Engine service initialized")

	// 9. Stop on SIGINT/SIGTERM. The engine itself knows nothing about
	// signals; it only exposes Stop.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info(context.Background(), "Shutdown signal received, stopping engine...", map[string]interface{}{"signal": sig.String()})
		engine.Stop()
	}()

	// 10. Start the Service
	if err := engine.Start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error(context.Background(), err, "Engine service exited with error")
		log.Fatalf("FATAL: Engine service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
