package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one confirmed swap, immutable once finalized. Every balance
// appears three ways (before, after, delta) in both token units and USD,
// with all USD figures derived from the single price snapshot taken at
// swap time.
type Record struct {
	Timestamp    time.Time
	Signature    string
	SrcMint      string
	DstMint      string
	USDRequested decimal.Decimal

	SrcBeforeUnits decimal.Decimal
	DstBeforeUnits decimal.Decimal
	SolBeforeUnits decimal.Decimal
	SrcAfterUnits  decimal.Decimal
	DstAfterUnits  decimal.Decimal
	SolAfterUnits  decimal.Decimal
	SrcDeltaUnits  decimal.Decimal
	DstDeltaUnits  decimal.Decimal
	SolDeltaUnits  decimal.Decimal

	SrcBeforeUSD decimal.Decimal
	DstBeforeUSD decimal.Decimal
	SolBeforeUSD decimal.Decimal
	SrcAfterUSD  decimal.Decimal
	DstAfterUSD  decimal.Decimal
	SolAfterUSD  decimal.Decimal
	SrcDeltaUSD  decimal.Decimal
	DstDeltaUSD  decimal.Decimal
	SolDeltaUSD  decimal.Decimal

	SrcUnitPriceUSD decimal.Decimal
	DstUnitPriceUSD decimal.Decimal
	SolUnitPriceUSD decimal.Decimal
	PriceFetchedAt  time.Time

	InAmountUnits  decimal.Decimal
	OutAmountUnits decimal.Decimal

	RouteFeeDstUnits    decimal.Decimal
	FeeMint             string
	NetworkFeeUnits     decimal.Decimal
	NetworkFeeUSD       decimal.Decimal
	PriorityFeeSolUnits decimal.Decimal
	PriceImpactPct      decimal.Decimal
	EffectiveRate       decimal.Decimal
	SlippageBps         int
}

// BalanceSnapshot holds the three balances touched by one swap, read in
// one pass.
type BalanceSnapshot struct {
	Src     decimal.Decimal
	Dst     decimal.Decimal
	Sol     decimal.Decimal
	TakenAt time.Time
}

// Draft collects everything the orchestrator measured for one swap.
// Finalize derives every delta and USD field; they are never supplied
// from outside.
type Draft struct {
	Signature    string
	Timestamp    time.Time
	SrcMint      string
	DstMint      string
	USDRequested decimal.Decimal

	Before BalanceSnapshot
	After  BalanceSnapshot

	SrcPriceUSD    decimal.Decimal
	DstPriceUSD    decimal.Decimal
	SolPriceUSD    decimal.Decimal
	PriceFetchedAt time.Time

	InAmountUnits  decimal.Decimal
	OutAmountUnits decimal.Decimal

	RouteFeeDstUnits    decimal.Decimal
	FeeMint             string
	FeeMintPriceUSD     decimal.Decimal
	NetworkFeeUnits     decimal.Decimal
	PriorityFeeSolUnits decimal.Decimal
	PriceImpactPct      decimal.Decimal
	SlippageBps         int
}

// Finalize computes the derived fields and freezes the draft into a
// record. delta = after - before holds exactly for every unit/USD pair
// because both sides come from the same decimal arithmetic.
func (d *Draft) Finalize() (*Record, error) {
	if d.Signature == "" {
		return nil, fmt.Errorf("draft has no transaction signature")
	}
	if d.Timestamp.IsZero() {
		return nil, fmt.Errorf("draft has no confirmation timestamp")
	}

	r := &Record{
		Timestamp:    d.Timestamp.UTC(),
		Signature:    d.Signature,
		SrcMint:      d.SrcMint,
		DstMint:      d.DstMint,
		USDRequested: d.USDRequested,

		SrcBeforeUnits: d.Before.Src,
		DstBeforeUnits: d.Before.Dst,
		SolBeforeUnits: d.Before.Sol,
		SrcAfterUnits:  d.After.Src,
		DstAfterUnits:  d.After.Dst,
		SolAfterUnits:  d.After.Sol,
		SrcDeltaUnits:  d.After.Src.Sub(d.Before.Src),
		DstDeltaUnits:  d.After.Dst.Sub(d.Before.Dst),
		SolDeltaUnits:  d.After.Sol.Sub(d.Before.Sol),

		SrcUnitPriceUSD: d.SrcPriceUSD,
		DstUnitPriceUSD: d.DstPriceUSD,
		SolUnitPriceUSD: d.SolPriceUSD,
		PriceFetchedAt:  d.PriceFetchedAt.UTC(),

		InAmountUnits:  d.InAmountUnits,
		OutAmountUnits: d.OutAmountUnits,

		RouteFeeDstUnits:    d.RouteFeeDstUnits,
		FeeMint:             d.FeeMint,
		NetworkFeeUnits:     d.NetworkFeeUnits,
		NetworkFeeUSD:       d.NetworkFeeUnits.Mul(d.FeeMintPriceUSD),
		PriorityFeeSolUnits: d.PriorityFeeSolUnits,
		PriceImpactPct:      d.PriceImpactPct,
		SlippageBps:         d.SlippageBps,
	}

	r.SrcBeforeUSD = d.Before.Src.Mul(d.SrcPriceUSD)
	r.DstBeforeUSD = d.Before.Dst.Mul(d.DstPriceUSD)
	r.SolBeforeUSD = d.Before.Sol.Mul(d.SolPriceUSD)
	r.SrcAfterUSD = d.After.Src.Mul(d.SrcPriceUSD)
	r.DstAfterUSD = d.After.Dst.Mul(d.DstPriceUSD)
	r.SolAfterUSD = d.After.Sol.Mul(d.SolPriceUSD)
	r.SrcDeltaUSD = r.SrcAfterUSD.Sub(r.SrcBeforeUSD)
	r.DstDeltaUSD = r.DstAfterUSD.Sub(r.DstBeforeUSD)
	r.SolDeltaUSD = r.SolAfterUSD.Sub(r.SolBeforeUSD)

	if !d.InAmountUnits.IsZero() {
		r.EffectiveRate = d.OutAmountUnits.Div(d.InAmountUnits)
	}

	return r, nil
}
