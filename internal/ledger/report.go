package ledger

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// amountPlaces and feePlaces are the display roundings of the console
// report: 2 decimals for balances, 6 for fees where dust matters.
const (
	amountPlaces = 2
	feePlaces    = 6
)

// Report renders one record in four sections: unit amounts, USD amounts,
// deltas, and fees/metadata. The field set mirrors the ledger columns;
// nothing is dropped or renamed, only rounded for display.
func Report(w io.Writer, r *Record) error {
	line := func(label string, value string) error {
		_, err := fmt.Fprintf(w, "%28s: %s\n", label, value)
		return err
	}
	amount := func(label string, d decimal.Decimal) error {
		return line(label, d.StringFixed(amountPlaces))
	}
	fee := func(label string, d decimal.Decimal) error {
		return line(label, d.StringFixed(feePlaces))
	}

	if _, err := fmt.Fprintln(w, "=== Swap", r.Signature, "==="); err != nil {
		return err
	}
	if err := line("UTC time", r.Timestamp.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := line("Source mint", r.SrcMint); err != nil {
		return err
	}
	if err := line("Destination mint", r.DstMint); err != nil {
		return err
	}

	fmt.Fprintln(w, "--- Balances (units) ---")
	steps := []struct {
		label string
		value decimal.Decimal
	}{
		{"Src before (units)", r.SrcBeforeUnits},
		{"Dst before (units)", r.DstBeforeUnits},
		{"SOL before (units)", r.SolBeforeUnits},
		{"Src after (units)", r.SrcAfterUnits},
		{"Dst after (units)", r.DstAfterUnits},
		{"SOL after (units)", r.SolAfterUnits},
	}
	for _, s := range steps {
		if err := amount(s.label, s.value); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "--- Balances (USD) ---")
	steps = []struct {
		label string
		value decimal.Decimal
	}{
		{"Src before (USD)", r.SrcBeforeUSD},
		{"Dst before (USD)", r.DstBeforeUSD},
		{"SOL before (USD)", r.SolBeforeUSD},
		{"Src after (USD)", r.SrcAfterUSD},
		{"Dst after (USD)", r.DstAfterUSD},
		{"SOL after (USD)", r.SolAfterUSD},
	}
	for _, s := range steps {
		if err := amount(s.label, s.value); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "--- Deltas ---")
	steps = []struct {
		label string
		value decimal.Decimal
	}{
		{"Src delta (units)", r.SrcDeltaUnits},
		{"Dst delta (units)", r.DstDeltaUnits},
		{"SOL delta (units)", r.SolDeltaUnits},
		{"Src delta (USD)", r.SrcDeltaUSD},
		{"Dst delta (USD)", r.DstDeltaUSD},
		{"SOL delta (USD)", r.SolDeltaUSD},
	}
	for _, s := range steps {
		if err := amount(s.label, s.value); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "--- Fees & metadata ---")
	if err := fee("Route fee (dst units)", r.RouteFeeDstUnits); err != nil {
		return err
	}
	if err := fee("Network fee ("+feeLabel(r)+")", r.NetworkFeeUnits); err != nil {
		return err
	}
	if err := fee("Network fee (USD)", r.NetworkFeeUSD); err != nil {
		return err
	}
	if err := fee("Priority fee (SOL)", r.PriorityFeeSolUnits); err != nil {
		return err
	}
	if err := amount("Price impact %", r.PriceImpactPct); err != nil {
		return err
	}
	if err := fee("Effective rate", r.EffectiveRate); err != nil {
		return err
	}
	if err := line("Price snapshot", r.PriceFetchedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return line("Signature", r.Signature)
}

const nativeMint = "So11111111111111111111111111111111111111112"

func feeLabel(r *Record) string {
	if r.FeeMint == "" || r.FeeMint == nativeMint {
		return "SOL"
	}
	if len(r.FeeMint) > 4 {
		return r.FeeMint[:4] + "…"
	}
	return r.FeeMint
}
