package main

// Standalone screen: run the full security evaluation against one
// token/pair and print the verdict, without trading anything. Useful
// for tuning thresholds against known-good and known-bad tokens.

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pairsniper/config"
	"pairsniper/internal/adapters/bnbprice"
	"pairsniper/internal/adapters/bscscan"
	"pairsniper/internal/adapters/evmclient"
	"pairsniper/internal/adapters/goplus"
	"pairsniper/internal/adapters/logger"
	"pairsniper/internal/domain"
	"pairsniper/internal/security"
)

func main() {
	tokenFlag := flag.String("token", "", "token contract address (required)")
	pairFlag := flag.String("pair", "", "pair contract address (required)")
	flag.Parse()

	token, err := domain.ParseAddress(*tokenFlag)
	if err != nil {
		log.Fatalf("invalid -token: %v", err)
	}
	pair, err := domain.ParseAddress(*pairFlag)
	if err != nil {
		log.Fatalf("invalid -pair: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	chain, err := evmclient.NewClient(ctx, evmclient.Config{
		Endpoints:          cfg.RPCEndpoints,
		PrivateKey:         cfg.PrivateKey,
		RouterAddress:      cfg.RouterAddress,
		FactoryAddress:     cfg.FactoryAddress,
		WBNBAddress:        cfg.WBNBAddress,
		GasPriceMultiplier: cfg.GasPriceMultiplier,
		MaxGasPriceGwei:    cfg.MaxGasPriceGwei,
	}, appLogger)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer chain.Close()

	info, err := chain.GetTokenMetadata(ctx, token)
	if err != nil {
		log.Fatalf("failed to fetch token metadata: %v", err)
	}

	risk := goplus.NewClient(cfg.GoPlusBaseURL, cfg.GoPlusAPIKey, "56", cfg.CallTimeout, appLogger)
	verifier := bscscan.NewClient(cfg.BscScanBaseURL, cfg.BscScanAPIKey, cfg.CallTimeout)
	oracle := bnbprice.NewOracle(cfg.FallbackBNBPriceUSD, appLogger)

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
	}, appLogger)

	verdict, err := evaluator.Evaluate(ctx, info, pair)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	fmt.Printf("Token:  %s (%s)\n", info.Name, info.Symbol)
	fmt.Printf("Safe:   %v\n", verdict.IsSafe)
	fmt.Println("Checks:")
	for _, out := range verdict.Checks {
		fmt.Printf("  %-24s %s", out.Check, out.Status)
		if len(out.Reasons) > 0 {
			fmt.Printf("  %v", out.Reasons)
		}
		if out.Cause != nil {
			fmt.Printf("  (%v)", out.Cause)
		}
		fmt.Println()
	}
	if !verdict.IsSafe {
		os.Exit(1)
	}
}
