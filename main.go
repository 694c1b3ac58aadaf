package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"

	"pairsniper/config"
	"pairsniper/internal/adapters/bnbprice"
	"pairsniper/internal/adapters/bscscan"
	"pairsniper/internal/adapters/evmclient"
	"pairsniper/internal/adapters/goplus"
	"pairsniper/internal/adapters/ledgerfile"
	"pairsniper/internal/adapters/logger"
	"pairsniper/internal/adapters/sqlite"
	"pairsniper/internal/adapters/telegram"
	"pairsniper/internal/app"
	"pairsniper/internal/ledger"
	"pairsniper/internal/policy"
	"pairsniper/internal/ports"
	"pairsniper/internal/profit"
	"pairsniper/internal/security"
)

// goPlusChainID identifies BSC in the risk API.
const goPlusChainID = "56"

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Chain Gateway
	chain, err := evmclient.NewClient(ctx, evmclient.Config{
		Endpoints:          cfg.RPCEndpoints,
		PrivateKey:         cfg.PrivateKey,
		RouterAddress:      cfg.RouterAddress,
		FactoryAddress:     cfg.FactoryAddress,
		WBNBAddress:        cfg.WBNBAddress,
		GasPriceMultiplier: cfg.GasPriceMultiplier,
		MaxGasPriceGwei:    cfg.MaxGasPriceGwei,
		ReceiptTimeout:     2 * time.Minute,
	}, appLogger.WithComponent("chain"))
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize chain gateway")
		log.Fatalf("FATAL: Failed to initialize chain gateway: %v", err)
	}
	defer chain.Close()

	// 4. Initialize Ledger Persistence and Trade Archive
	store, err := ledgerfile.NewStore(cfg.LedgerPath, appLogger.WithComponent("ledger"))
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize ledger store")
		log.Fatalf("FATAL: Failed to initialize ledger store: %v", err)
	}

	var archive ports.TradeArchive
	sqlArchive, err := sqlite.NewArchive(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger.WithComponent("archive"),
	})
	if err != nil {
		// History is best-effort; run without it rather than refusing to start.
		appLogger.Error(ctx, err, "Trade archive unavailable, continuing without history")
	} else {
		archive = sqlArchive
		defer func() {
			if err := sqlArchive.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing trade archive")
			}
		}()
	}

	lgr, err := ledger.Open(ctx, store, archive, cfg.DustThreshold, appLogger.WithComponent("ledger"))
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to open position ledger")
		log.Fatalf("FATAL: Failed to open position ledger: %v", err)
	}

	// 5. Initialize Risk Data Providers and Price Oracle
	risk := goplus.NewClient(cfg.GoPlusBaseURL, cfg.GoPlusAPIKey, goPlusChainID, cfg.CallTimeout, appLogger.WithComponent("goplus"))
	verifier := bscscan.NewClient(cfg.BscScanBaseURL, cfg.BscScanAPIKey, cfg.CallTimeout)
	oracle := bnbprice.NewOracle(cfg.FallbackBNBPriceUSD, appLogger.WithComponent("oracle"))

	// 6. Initialize Notifier (optional; nil is a no-op)
	notifier, err := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID, appLogger.WithComponent("telegram"))
	if err != nil {
		appLogger.Error(ctx, err, "Telegram notifier unavailable, continuing without notifications")
	}

	// 7. Assemble Core Components
	evaluator := security.NewEvaluator(chain, risk, verifier, oracle, cfg.References(), security.Thresholds{
		MaxBuyTaxPct:          cfg.MaxBuyTaxPct,
		MaxSellTaxPct:         cfg.MaxSellTaxPct,
		MinHolders:            cfg.MinHolders,
		MinLiquidityUSD:       cfg.MinLiquidityUSD,
		MaxHolderShare:        cfg.MaxHolderShare,
		MaxCreatorShare:       cfg.MaxCreatorShare,
		RequireVerified:       cfg.RequireVerifiedContract,
		RequireRenounced:      cfg.RequireRenouncedOwner,
		WhitelistCountsAsOpen: cfg.WhitelistCountsAsOpen,
		HoneypotProbeBNB:      cfg.HoneypotProbeBNB,
		MaxRoundTripImpact:    cfg.MaxRoundTripImpact,
	}, appLogger.WithComponent("security"))

	tiers := make([]profit.Tier, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		tiers[i] = profit.Tier{Multiplier: t.Multiplier, Percentage: t.Percentage}
	}
	engine := profit.NewEngine(tiers, cfg.TrailingStopPct, cfg.MaxHoldDuration, cfg.DustThreshold)
	pol := policy.New(cfg.BuyAmountBNB, cfg.MaxBuyAmountBNB, cfg.CompoundRate, appLogger.WithComponent("policy"))

	// 8. Run
	service, err := app.NewSniperService(cfg, appLogger.WithComponent("app"), chain, evaluator, lgr, engine, pol, notifier)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to assemble sniper service")
		log.Fatalf("FATAL: Failed to assemble sniper service: %v", err)
	}
	if err := service.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Sniper service exited with error")
		log.Fatalf("FATAL: %v", err)
	}
}
