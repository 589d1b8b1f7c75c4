package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Header enumerates every ledger column in the fixed write order.
// Readers locate columns by name, so historical files remain loadable if
// the order ever changes.
func Header() []string {
	return []string{
		"ts_utc",
		"signature",
		"src_mint",
		"dst_mint",
		"usd_requested",
		"src_before_units", "dst_before_units", "sol_before_units",
		"src_after_units", "dst_after_units", "sol_after_units",
		"src_delta_units", "dst_delta_units", "sol_delta_units",
		"src_before_usd", "dst_before_usd", "sol_before_usd",
		"src_after_usd", "dst_after_usd", "sol_after_usd",
		"src_delta_usd", "dst_delta_usd", "sol_delta_usd",
		"src_unit_price_usd", "dst_unit_price_usd", "sol_unit_price_usd",
		"price_fetched_at",
		"in_amount_units",
		"out_amount_units",
		"route_fee_dst_units",
		"fee_mint",
		"network_fee_units",
		"network_fee_usd",
		"priority_fee_sol_units",
		"price_impact_pct",
		"effective_rate",
		"slippage_bps",
	}
}

// ToCSV converts a record to one ledger row, ordered per Header.
func (r *Record) ToCSV() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Signature,
		r.SrcMint,
		r.DstMint,
		r.USDRequested.String(),
		r.SrcBeforeUnits.String(), r.DstBeforeUnits.String(), r.SolBeforeUnits.String(),
		r.SrcAfterUnits.String(), r.DstAfterUnits.String(), r.SolAfterUnits.String(),
		r.SrcDeltaUnits.String(), r.DstDeltaUnits.String(), r.SolDeltaUnits.String(),
		r.SrcBeforeUSD.String(), r.DstBeforeUSD.String(), r.SolBeforeUSD.String(),
		r.SrcAfterUSD.String(), r.DstAfterUSD.String(), r.SolAfterUSD.String(),
		r.SrcDeltaUSD.String(), r.DstDeltaUSD.String(), r.SolDeltaUSD.String(),
		r.SrcUnitPriceUSD.String(), r.DstUnitPriceUSD.String(), r.SolUnitPriceUSD.String(),
		r.PriceFetchedAt.UTC().Format(time.RFC3339Nano),
		r.InAmountUnits.String(),
		r.OutAmountUnits.String(),
		r.RouteFeeDstUnits.String(),
		r.FeeMint,
		r.NetworkFeeUnits.String(),
		r.NetworkFeeUSD.String(),
		r.PriorityFeeSolUnits.String(),
		r.PriceImpactPct.String(),
		r.EffectiveRate.String(),
		strconv.Itoa(r.SlippageBps),
	}
}

// recordFromRow rebuilds a record from one CSV row, using the file's own
// header to locate fields.
func recordFromRow(header []string, row []string) (*Record, error) {
	if len(row) != len(header) {
		return nil, fmt.Errorf("row has %d fields, header has %d", len(row), len(header))
	}
	cols := make(map[string]string, len(header))
	for i, name := range header {
		cols[name] = row[i]
	}

	var parseErr error
	str := func(name string) string {
		return cols[name]
	}
	dec := func(name string) decimal.Decimal {
		v := cols[name]
		if v == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(v)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("column %s: %w", name, err)
		}
		return d
	}
	ts := func(name string) time.Time {
		v := cols[name]
		if v == "" {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("column %s: %w", name, err)
		}
		return t
	}

	slippage := 0
	if v := cols["slippage_bps"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("column slippage_bps: %w", err)
		}
		slippage = n
	}

	r := &Record{
		Timestamp:    ts("ts_utc"),
		Signature:    str("signature"),
		SrcMint:      str("src_mint"),
		DstMint:      str("dst_mint"),
		USDRequested: dec("usd_requested"),

		SrcBeforeUnits: dec("src_before_units"),
		DstBeforeUnits: dec("dst_before_units"),
		SolBeforeUnits: dec("sol_before_units"),
		SrcAfterUnits:  dec("src_after_units"),
		DstAfterUnits:  dec("dst_after_units"),
		SolAfterUnits:  dec("sol_after_units"),
		SrcDeltaUnits:  dec("src_delta_units"),
		DstDeltaUnits:  dec("dst_delta_units"),
		SolDeltaUnits:  dec("sol_delta_units"),

		SrcBeforeUSD: dec("src_before_usd"),
		DstBeforeUSD: dec("dst_before_usd"),
		SolBeforeUSD: dec("sol_before_usd"),
		SrcAfterUSD:  dec("src_after_usd"),
		DstAfterUSD:  dec("dst_after_usd"),
		SolAfterUSD:  dec("sol_after_usd"),
		SrcDeltaUSD:  dec("src_delta_usd"),
		DstDeltaUSD:  dec("dst_delta_usd"),
		SolDeltaUSD:  dec("sol_delta_usd"),

		SrcUnitPriceUSD: dec("src_unit_price_usd"),
		DstUnitPriceUSD: dec("dst_unit_price_usd"),
		SolUnitPriceUSD: dec("sol_unit_price_usd"),
		PriceFetchedAt:  ts("price_fetched_at"),

		InAmountUnits:  dec("in_amount_units"),
		OutAmountUnits: dec("out_amount_units"),

		RouteFeeDstUnits:    dec("route_fee_dst_units"),
		FeeMint:             str("fee_mint"),
		NetworkFeeUnits:     dec("network_fee_units"),
		NetworkFeeUSD:       dec("network_fee_usd"),
		PriorityFeeSolUnits: dec("priority_fee_sol_units"),
		PriceImpactPct:      dec("price_impact_pct"),
		EffectiveRate:       dec("effective_rate"),
		SlippageBps:         slippage,
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return r, nil
}
