package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/jupiter-swap/internal/config"
	"github.com/rovshanmuradov/jupiter-swap/internal/ledger"
)

// history prints the recorded swaps back out of the ledger, either as a
// one-line-per-swap summary or as full reports with -full.
func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		full       = flag.Bool("full", false, "print the full report per swap")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logFatal("invalid configuration", err)
	}

	log, _ := zap.NewProduction()
	defer log.Sync()

	store := ledger.NewStore(cfg.LedgerPath, log)
	records, err := store.LoadAll()
	if err != nil {
		logFatal("failed to load ledger", err)
	}

	if len(records) == 0 {
		fmt.Println("ledger is empty")
		return
	}

	if *full {
		for _, record := range records {
			if err := ledger.Report(os.Stdout, record); err != nil {
				logFatal("failed to render report", err)
			}
			fmt.Println()
		}
		return
	}

	totalUSD := decimal.Zero
	for _, record := range records {
		totalUSD = totalUSD.Add(record.USDRequested)
		fmt.Printf("%s  %s -> %s  %s USD  impact %s%%  sig %s\n",
			record.Timestamp.Format("2006-01-02 15:04:05"),
			shortMint(record.SrcMint),
			shortMint(record.DstMint),
			record.USDRequested.StringFixed(2),
			record.PriceImpactPct.StringFixed(2),
			record.Signature)
	}
	fmt.Printf("\n%d swaps, %s USD total\n", len(records), totalUSD.StringFixed(2))
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + "…" + mint[len(mint)-4:]
}

func logFatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
