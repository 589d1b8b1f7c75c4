package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/jupiter-swap/internal/jupiter"
	"github.com/rovshanmuradov/jupiter-swap/internal/wallet"
)

// lamportsPerSignature is the base network fee, used when the confirmed
// transaction's metadata cannot be fetched.
const lamportsPerSignature = 5000

// ChainClient is the slice of RPC surface the submitter needs.
type ChainClient interface {
	SendRawTransaction(ctx context.Context, serialized []byte, skipPreflight bool) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransactionMeta(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error)
}

// SwapBuilder turns a quote into a serialized transaction template.
type SwapBuilder interface {
	SwapTransaction(ctx context.Context, quote *jupiter.Quote, user solana.PublicKey) (*jupiter.SwapBundle, error)
}

type Config struct {
	SkipPreflight       bool
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	MaxSubmitElapsed    time.Duration
	QuoteTTL            time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.ConfirmationTimeout == 0 {
		cfg.ConfirmationTimeout = 60 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxSubmitElapsed == 0 {
		cfg.MaxSubmitElapsed = 15 * time.Second
	}
	if cfg.QuoteTTL == 0 {
		cfg.QuoteTTL = 20 * time.Second
	}
	return cfg
}

// Receipt describes one confirmed transaction.
type Receipt struct {
	Signature           solana.Signature
	Slot                uint64
	ConfirmedAt         time.Time
	NetworkFeeLamports  uint64
	PriorityFeeLamports uint64
}

// Submitter builds, signs, submits and confirms swap transactions.
type Submitter struct {
	client  ChainClient
	builder SwapBuilder
	wallet  *wallet.Wallet
	logger  *zap.Logger
	config  Config
}

func New(client ChainClient, builder SwapBuilder, w *wallet.Wallet, logger *zap.Logger, cfg Config) *Submitter {
	return &Submitter{
		client:  client,
		builder: builder,
		wallet:  w,
		logger:  logger.Named("submitter"),
		config:  cfg.withDefaults(),
	}
}

// SubmitSwap executes a quote end to end: fetch the transaction template,
// sign it, submit it and poll until the network reports it confirmed.
// The receipt is returned only after confirmation; an unconfirmed
// transaction surfaces as *ConfirmationTimeoutError carrying the
// signature.
func (s *Submitter) SubmitSwap(ctx context.Context, quote *jupiter.Quote) (*Receipt, error) {
	bundle, err := s.builder.SwapTransaction(ctx, quote, s.wallet.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build swap transaction: %w", err)
	}

	signed, sig, err := s.wallet.SignSerialized(bundle.Raw)
	if err != nil {
		return nil, err
	}

	// Staleness is judged after the build and sign round trips, the slow
	// part between quoting and sending. A stale quote goes back to the
	// caller for a refetch instead of on-chain.
	if quote.Expired(time.Now(), s.config.QuoteTTL) {
		return nil, fmt.Errorf("quote fetched at %s: %w",
			quote.FetchedAt.Format(time.RFC3339), jupiter.ErrQuoteExpired)
	}

	sig, err = s.sendWithRetry(ctx, signed, sig)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Transaction submitted",
		zap.String("signature", sig.String()),
		zap.String("input_mint", quote.InputMint),
		zap.String("output_mint", quote.OutputMint))

	receipt, err := s.awaitConfirmation(ctx, sig)
	if err != nil {
		return nil, err
	}

	receipt.PriorityFeeLamports = bundle.PriorityFeeLamports
	s.fillNetworkFee(ctx, receipt)
	return receipt, nil
}

func (s *Submitter) sendWithRetry(ctx context.Context, signed []byte, expected solana.Signature) (solana.Signature, error) {
	op := func() (solana.Signature, error) {
		sig, err := s.client.SendRawTransaction(ctx, signed, s.config.SkipPreflight)
		if err != nil {
			if isBlockhashNotFound(err) {
				s.logger.Warn("Retrying transaction send", zap.Error(err))
				return solana.Signature{}, err
			}
			return solana.Signature{}, backoff.Permanent(&SubmissionError{
				Reason: classifyReason(err),
				Err:    err,
			})
		}
		return sig, nil
	}

	sig, err := backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(s.config.MaxSubmitElapsed),
	)
	if err != nil {
		// Exhausted retries are still a submit-time failure; keep the
		// error type uniform for callers mapping failures to states.
		var rejected *SubmissionError
		if !errors.As(err, &rejected) {
			err = &SubmissionError{Reason: "send retries exhausted", Err: err}
		}
		return expected, err
	}
	return sig, nil
}

// awaitConfirmation polls signature statuses until the network reports the
// transaction confirmed or finalized. "processed" is not enough: balance
// deltas are only valid against a confirmed transaction.
func (s *Submitter) awaitConfirmation(ctx context.Context, sig solana.Signature) (*Receipt, error) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	deadline := time.After(s.config.ConfirmationTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil, &ConfirmationTimeoutError{Signature: sig, Timeout: s.config.ConfirmationTimeout}
		case <-deadline:
			return nil, &ConfirmationTimeoutError{Signature: sig, Timeout: s.config.ConfirmationTimeout}
		case <-ticker.C:
			statuses, err := s.client.GetSignatureStatuses(ctx, sig)
			if err != nil {
				s.logger.Warn("Confirmation check failed", zap.Error(err))
				continue
			}
			if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return nil, &SubmissionError{
					Reason: "transaction failed on-chain",
					Err:    fmt.Errorf("%v", status.Err),
				}
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return &Receipt{
					Signature:   sig,
					Slot:        status.Slot,
					ConfirmedAt: time.Now().UTC(),
				}, nil
			}
		}
	}
}

// fillNetworkFee reads the fee actually paid from the confirmed
// transaction's metadata. Best effort: the base fee is assumed when the
// lookup fails, since the transaction is already confirmed at this point.
func (s *Submitter) fillNetworkFee(ctx context.Context, receipt *Receipt) {
	receipt.NetworkFeeLamports = lamportsPerSignature

	result, err := s.client.GetTransactionMeta(ctx, receipt.Signature)
	if err != nil || result == nil || result.Meta == nil {
		s.logger.Debug("Falling back to base network fee",
			zap.String("signature", receipt.Signature.String()),
			zap.Error(err))
		return
	}
	receipt.NetworkFeeLamports = result.Meta.Fee
}
