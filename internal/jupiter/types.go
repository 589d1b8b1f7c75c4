package jupiter

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRequest describes one route request. Amount is in source-mint base
// units; the USD-to-units conversion happens upstream in the orchestrator.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// Quote is one time-bounded route estimate. It keeps the raw upstream
// payload so the swap endpoint receives exactly what the quote endpoint
// returned.
type Quote struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot,omitempty"`

	FetchedAt time.Time       `json:"-"`
	raw       json.RawMessage `json:"-"`
}

type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent,omitempty"`
}

type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label,omitempty"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount,omitempty"`
	FeeMint    string `json:"feeMint,omitempty"`
}

// Expired reports whether the quote is too old to build a transaction from.
func (q *Quote) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.FetchedAt) > ttl
}

// OutAmountUI returns the expected output in destination UI units.
func (q *Quote) OutAmountUI(dstDecimals uint8) (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(q.OutAmount)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Shift(-int32(dstDecimals)), nil
}

// InAmountUI returns the quoted input in source UI units.
func (q *Quote) InAmountUI(srcDecimals uint8) (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(q.InAmount)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Shift(-int32(srcDecimals)), nil
}

// PriceImpact returns the quoted price impact as a percentage.
func (q *Quote) PriceImpact() decimal.Decimal {
	d, err := decimal.NewFromString(q.PriceImpactPct)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RouteFeeRaw sums the per-leg fee amounts charged in the given mint,
// in that mint's base units. Legs with missing fee data contribute zero.
func (q *Quote) RouteFeeRaw(mint string) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range q.RoutePlan {
		if leg.SwapInfo.FeeMint != mint || leg.SwapInfo.FeeAmount == "" {
			continue
		}
		fee, err := decimal.NewFromString(leg.SwapInfo.FeeAmount)
		if err != nil {
			continue
		}
		total = total.Add(fee)
	}
	return total
}

// Raw returns the upstream quote payload verbatim.
func (q *Quote) Raw() json.RawMessage {
	return q.raw
}

// SwapBundle is the serialized transaction Jupiter built for a quote.
type SwapBundle struct {
	Raw                  []byte
	LastValidBlockHeight uint64
	PriorityFeeLamports  uint64
}

// PriceSnapshot holds the USD unit prices of the three assets touched by
// one swap, fetched close enough together to be treated as one moment.
// A single snapshot is taken per orchestration run and every USD field of
// the resulting record derives from it.
type PriceSnapshot struct {
	SrcMint   string
	DstMint   string
	Src       decimal.Decimal
	Dst       decimal.Decimal
	SOL       decimal.Decimal
	FetchedAt time.Time
}
