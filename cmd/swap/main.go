package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/jupiter-swap/internal/config"
	"github.com/rovshanmuradov/jupiter-swap/internal/jupiter"
	"github.com/rovshanmuradov/jupiter-swap/internal/ledger"
	"github.com/rovshanmuradov/jupiter-swap/internal/logger"
	solbc "github.com/rovshanmuradov/jupiter-swap/internal/solana"
	"github.com/rovshanmuradov/jupiter-swap/internal/submitter"
	"github.com/rovshanmuradov/jupiter-swap/internal/swap"
	"github.com/rovshanmuradov/jupiter-swap/internal/wallet"
)

func main() {
	var (
		srcMint    = flag.String("src", "", "source mint address")
		dstMint    = flag.String("dst", "", "destination mint address")
		usdAmount  = flag.String("usd", "", "USD amount to swap")
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
	)
	flag.Parse()

	// .env is optional; explicit environment always wins.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal("invalid configuration", err)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     "swap.log",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fatal("failed to initialize logger", err)
	}
	defer log.Sync()

	if *srcMint == "" || *dstMint == "" || *usdAmount == "" {
		log.Fatal("Usage: swap -src <mint> -dst <mint> -usd <amount>")
	}
	amount, err := decimal.NewFromString(*usdAmount)
	if err != nil {
		log.Fatal("Invalid USD amount", zap.String("usd", *usdAmount), zap.Error(err))
	}
	runLog := log.WithSwap(*srcMint, *dstMint, amount.String())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, err := wallet.Load(cfg.WalletFile)
	if err != nil {
		log.Fatal("Failed to load wallet", zap.String("wallet_file", cfg.WalletFile), zap.Error(err))
	}
	log.Info("Wallet loaded", zap.String("pubkey", w.String()))

	client := solbc.NewClient(cfg.RPCURL, cfg.RPCFallbackURL, log.Logger)
	reader := solbc.NewBalanceReader(client, log.Logger)
	jup := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey, log.Logger)
	subm := submitter.New(client, jup, w, log.Logger, submitter.Config{
		ConfirmationTimeout: cfg.ConfirmationTimeout(),
		QuoteTTL:            cfg.QuoteTTL(),
	})
	store := ledger.NewStore(cfg.LedgerPath, log.Logger)

	orch := swap.NewOrchestrator(reader, jup, jup, subm, store, w.PublicKey, log.Logger, swap.Options{
		SlippageBps:     cfg.SlippageBps,
		FeeDenomination: cfg.FeeDenomination,
	})

	record, err := orch.Execute(ctx, *srcMint, *dstMint, amount)
	if err != nil {
		var timeout *submitter.ConfirmationTimeoutError
		if errors.As(err, &timeout) {
			// The transaction may still land; hand the signature to the
			// operator for later reconciliation.
			runLog.Fatal("Confirmation timed out, check signature later",
				zap.String("signature", timeout.Signature.String()),
				zap.Error(err))
		}
		runLog.Fatal("Swap failed", zap.Error(err))
	}
	log.WithTransaction(record.Signature).Info("Swap confirmed",
		zap.String("src_delta_units", record.SrcDeltaUnits.String()),
		zap.String("dst_delta_units", record.DstDeltaUnits.String()))

	if err := ledger.Report(os.Stdout, record); err != nil {
		log.Error("Failed to render report", zap.Error(err))
	}
}

func fatal(msg string, err error) {
	fallback, _ := zap.NewProduction()
	fallback.Fatal(msg, zap.Error(err))
}
