package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/jupiter-swap/internal/config"
	"github.com/rovshanmuradov/jupiter-swap/internal/jupiter"
	"github.com/rovshanmuradov/jupiter-swap/internal/ledger"
	"github.com/rovshanmuradov/jupiter-swap/internal/submitter"
	"github.com/rovshanmuradov/jupiter-swap/internal/wallet"
)

const solDecimals = 9

// BalanceSource reads on-chain balances and mint decimals.
type BalanceSource interface {
	UIBalance(ctx context.Context, mint string, owner solana.PublicKey) (decimal.Decimal, error)
	NativeBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error)
	Decimals(ctx context.Context, mint string) (uint8, error)
}

// PriceSource produces one consistent USD price snapshot per run.
type PriceSource interface {
	Snapshot(ctx context.Context, srcMint, dstMint string) (*jupiter.PriceSnapshot, error)
}

// QuoteSource fetches swap routes.
type QuoteSource interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	IsTradable(ctx context.Context, mint string) (bool, error)
}

// SwapSubmitter executes a quote on-chain and returns only after
// confirmation.
type SwapSubmitter interface {
	SubmitSwap(ctx context.Context, quote *jupiter.Quote) (*submitter.Receipt, error)
}

// RecordStore persists finalized records.
type RecordStore interface {
	Append(record *ledger.Record) error
}

// Options tune one orchestrator instance.
type Options struct {
	SlippageBps     int
	FeeDenomination config.FeeDenomination
}

func (o Options) withDefaults() Options {
	if o.SlippageBps == 0 {
		o.SlippageBps = config.DefaultSlippageBps
	}
	if o.FeeDenomination == "" {
		o.FeeDenomination = config.FeeNative
	}
	return o
}

// Orchestrator sequences one swap: pre-swap snapshot, quote, submit,
// confirm, post-swap snapshot, ledger append. Instances are safe for
// concurrent Execute calls; each call is an independent unit of work and
// only the ledger store is shared.
type Orchestrator struct {
	balances BalanceSource
	prices   PriceSource
	quotes   QuoteSource
	subm     SwapSubmitter
	store    RecordStore
	owner    solana.PublicKey
	logger   *zap.Logger
	opts     Options
}

func NewOrchestrator(
	balances BalanceSource,
	prices PriceSource,
	quotes QuoteSource,
	subm SwapSubmitter,
	store RecordStore,
	owner solana.PublicKey,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		balances: balances,
		prices:   prices,
		quotes:   quotes,
		subm:     subm,
		store:    store,
		owner:    owner,
		logger:   logger.Named("orchestrator"),
		opts:     opts.withDefaults(),
	}
}

// Execute swaps usdAmount worth of srcMint into dstMint and returns the
// finalized ledger record. The record is all-or-nothing: any failure
// before the ledger append leaves no partial row behind, and a
// confirmation timeout propagates the signature without persisting.
func (o *Orchestrator) Execute(ctx context.Context, srcMint, dstMint string, usdAmount decimal.Decimal) (*ledger.Record, error) {
	log := o.logger.With(
		zap.String("src_mint", srcMint),
		zap.String("dst_mint", dstMint),
		zap.String("usd_amount", usdAmount.String()))

	fail := func(state State, err error) (*ledger.Record, error) {
		log.Error("Swap failed",
			zap.String("state", string(state)),
			zap.Error(err))
		return nil, &StepError{
			State:     state,
			SrcMint:   srcMint,
			DstMint:   dstMint,
			USDAmount: usdAmount,
			Err:       err,
		}
	}

	if !usdAmount.IsPositive() {
		return fail(StateQuoting, fmt.Errorf("usd amount must be positive, got %s", usdAmount))
	}

	// Quoting: pre-swap balances, the price snapshot and the tradable
	// checks have no mutual dependencies, so they fan out concurrently
	// with one join before the quote request.
	log.Debug("Taking pre-swap snapshot")
	var (
		before      ledger.BalanceSnapshot
		snap        *jupiter.PriceSnapshot
		srcTradable bool
		dstTradable bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		before.Src, err = o.balances.UIBalance(gctx, srcMint, o.owner)
		return err
	})
	g.Go(func() (err error) {
		before.Dst, err = o.balances.UIBalance(gctx, dstMint, o.owner)
		return err
	})
	g.Go(func() (err error) {
		before.Sol, err = o.balances.NativeBalance(gctx, o.owner)
		return err
	})
	g.Go(func() (err error) {
		snap, err = o.prices.Snapshot(gctx, srcMint, dstMint)
		return err
	})
	g.Go(func() (err error) {
		srcTradable, err = o.quotes.IsTradable(gctx, srcMint)
		return err
	})
	g.Go(func() (err error) {
		dstTradable, err = o.quotes.IsTradable(gctx, dstMint)
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(StateQuoting, err)
	}
	before.TakenAt = time.Now().UTC()

	if !srcTradable {
		return fail(StateQuoting, fmt.Errorf("source mint %s: %w", srcMint, jupiter.ErrMintNotTradable))
	}
	if !dstTradable {
		return fail(StateQuoting, fmt.Errorf("destination mint %s: %w", dstMint, jupiter.ErrMintNotTradable))
	}

	srcDecimals, err := o.balances.Decimals(ctx, srcMint)
	if err != nil {
		return fail(StateQuoting, err)
	}
	dstDecimals, err := o.balances.Decimals(ctx, dstMint)
	if err != nil {
		return fail(StateQuoting, err)
	}

	baseUnits, inUnits, err := usdToBaseUnits(usdAmount, snap.Src, srcDecimals)
	if err != nil {
		return fail(StateQuoting, err)
	}
	if inUnits.GreaterThan(before.Src) {
		return fail(StateQuoting, fmt.Errorf("requested %s %s but wallet holds %s", inUnits, srcMint, before.Src))
	}

	quote, err := o.quotes.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   srcMint,
		OutputMint:  dstMint,
		Amount:      baseUnits,
		SlippageBps: o.opts.SlippageBps,
	})
	if err != nil {
		return fail(StateQuoting, err)
	}
	log.Info("Quote received",
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount),
		zap.String("price_impact_pct", quote.PriceImpactPct))

	// Building through Confirming happen inside the submitter. The
	// submitter judges quote staleness after its build/sign round trips;
	// a stale quote comes back once as ErrQuoteExpired and is replaced
	// rather than reused.
	receipt, err := o.subm.SubmitSwap(ctx, quote)
	if errors.Is(err, jupiter.ErrQuoteExpired) {
		log.Warn("Quote went stale during build, refetching")
		quote, err = o.quotes.Quote(ctx, jupiter.QuoteRequest{
			InputMint:   srcMint,
			OutputMint:  dstMint,
			Amount:      baseUnits,
			SlippageBps: o.opts.SlippageBps,
		})
		if err != nil {
			return fail(StateQuoting, err)
		}
		receipt, err = o.subm.SubmitSwap(ctx, quote)
	}
	if err != nil {
		return fail(submitState(err), err)
	}
	log.Info("Transaction confirmed",
		zap.String("signature", receipt.Signature.String()),
		zap.Uint64("slot", receipt.Slot))

	// Recording: post-swap balances fan out the same way the pre-swap
	// ones did, against the price snapshot from the Quoting step.
	var after ledger.BalanceSnapshot
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		after.Src, err = o.balances.UIBalance(gctx, srcMint, o.owner)
		return err
	})
	g.Go(func() (err error) {
		after.Dst, err = o.balances.UIBalance(gctx, dstMint, o.owner)
		return err
	})
	g.Go(func() (err error) {
		after.Sol, err = o.balances.NativeBalance(gctx, o.owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(StateRecording, err)
	}
	after.TakenAt = time.Now().UTC()

	record, err := o.finalize(quote, receipt, snap, before, after, usdAmount, srcDecimals, dstDecimals)
	if err != nil {
		return fail(StateRecording, err)
	}
	if err := o.store.Append(record); err != nil {
		return fail(StateRecording, err)
	}

	log.Info("Swap recorded",
		zap.String("signature", record.Signature),
		zap.String("src_delta_units", record.SrcDeltaUnits.String()),
		zap.String("dst_delta_units", record.DstDeltaUnits.String()))
	return record, nil
}

// History rehydrates every recorded swap for analytics.
func (o *Orchestrator) History() ([]*ledger.Record, error) {
	loader, ok := o.store.(interface{ LoadAll() ([]*ledger.Record, error) })
	if !ok {
		return nil, fmt.Errorf("record store does not support loading")
	}
	return loader.LoadAll()
}

func (o *Orchestrator) finalize(
	quote *jupiter.Quote,
	receipt *submitter.Receipt,
	snap *jupiter.PriceSnapshot,
	before, after ledger.BalanceSnapshot,
	usdAmount decimal.Decimal,
	srcDecimals, dstDecimals uint8,
) (*ledger.Record, error) {
	inUI, err := quote.InAmountUI(srcDecimals)
	if err != nil {
		return nil, fmt.Errorf("unparseable quote input amount: %w", err)
	}
	outUI, err := quote.OutAmountUI(dstDecimals)
	if err != nil {
		return nil, fmt.Errorf("unparseable quote output amount: %w", err)
	}

	networkFeeSol := decimal.NewFromUint64(receipt.NetworkFeeLamports).Shift(-solDecimals)

	feeMint := jupiter.NativeMint
	feeMintPrice := snap.SOL
	feeUnits := networkFeeSol
	if o.opts.FeeDenomination == config.FeeSource {
		// Fee-abstraction routes debit the source token instead; express
		// the lamport fee in source units at snapshot prices.
		feeMint = snap.SrcMint
		feeMintPrice = snap.Src
		if !snap.Src.IsZero() {
			feeUnits = networkFeeSol.Mul(snap.SOL).Div(snap.Src)
		}
	}

	draft := ledger.Draft{
		Signature:    receipt.Signature.String(),
		Timestamp:    receipt.ConfirmedAt,
		SrcMint:      snap.SrcMint,
		DstMint:      snap.DstMint,
		USDRequested: usdAmount,

		Before: before,
		After:  after,

		SrcPriceUSD:    snap.Src,
		DstPriceUSD:    snap.Dst,
		SolPriceUSD:    snap.SOL,
		PriceFetchedAt: snap.FetchedAt,

		InAmountUnits:  inUI,
		OutAmountUnits: outUI,

		RouteFeeDstUnits:    quote.RouteFeeRaw(snap.DstMint).Shift(-int32(dstDecimals)),
		FeeMint:             feeMint,
		FeeMintPriceUSD:     feeMintPrice,
		NetworkFeeUnits:     feeUnits,
		PriorityFeeSolUnits: decimal.NewFromUint64(receipt.PriorityFeeLamports).Shift(-solDecimals),
		PriceImpactPct:      quote.PriceImpact(),
		SlippageBps:         quote.SlippageBps,
	}
	return draft.Finalize()
}

// usdToBaseUnits converts a USD target into source-mint base units at the
// snapshot price. Rounds DOWN so the request never exceeds what the USD
// amount buys.
func usdToBaseUnits(usdAmount, srcPrice decimal.Decimal, srcDecimals uint8) (uint64, decimal.Decimal, error) {
	if !srcPrice.IsPositive() {
		return 0, decimal.Zero, fmt.Errorf("source price must be positive, got %s", srcPrice)
	}
	inUnits := usdAmount.Div(srcPrice)
	base := inUnits.Shift(int32(srcDecimals)).Floor()
	if !base.IsPositive() {
		return 0, decimal.Zero, fmt.Errorf("usd amount %s is below one base unit of the source mint", usdAmount)
	}
	bigBase := base.BigInt()
	if !bigBase.IsUint64() {
		return 0, decimal.Zero, fmt.Errorf("converted amount %s overflows base units", base)
	}
	// Report the floored amount back in UI units so balance checks match
	// what is actually requested.
	return bigBase.Uint64(), base.Shift(-int32(srcDecimals)), nil
}

// submitState maps a submitter failure onto the state it belongs to.
func submitState(err error) State {
	var timeout *submitter.ConfirmationTimeoutError
	if errors.As(err, &timeout) {
		return StateConfirming
	}
	var rejected *submitter.SubmissionError
	if errors.As(err, &rejected) {
		return StateSubmitting
	}
	if errors.Is(err, wallet.ErrSigning) {
		return StateSubmitting
	}
	return StateBuilding
}
