package solana

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NativeMint is the pseudo-mint Jupiter uses for native SOL.
const NativeMint = "So11111111111111111111111111111111111111112"

const solDecimals = 9

// Known mints whose decimals we can resolve without an RPC round trip.
// Last-resort fallback when both discovery strategies fail.
var staticDecimals = map[string]uint8{
	"EPjFWdd5AufqSSqeM2qcxkEzY6BpyHQzdDrRmqw5yHq3": 6, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": 6, // USDT
	"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": 8, // wBTC
	NativeMint: solDecimals,
}

// splMintDecimalsOffset is the byte offset of the u8 decimals field in the
// SPL mint account layout.
const splMintDecimalsOffset = 44

// BalanceReader reads on-chain balances in UI units for a given owner.
type BalanceReader struct {
	client   *Client
	logger   *zap.Logger
	decCache sync.Map // mint string -> uint8
}

func NewBalanceReader(client *Client, logger *zap.Logger) *BalanceReader {
	return &BalanceReader{
		client: client,
		logger: logger.Named("balance-reader"),
	}
}

// UIBalance returns the owner's balance of mint in human-readable units.
// A token account that was never initialized for this owner reads as zero.
func (r *BalanceReader) UIBalance(ctx context.Context, mint string, owner solana.PublicKey) (decimal.Decimal, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	if mint == NativeMint {
		return r.NativeBalance(ctx, owner)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to derive token account for mint %s: %w", mint, err)
	}

	result, err := r.client.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("token balance query failed for mint %s: %w", mint, err)
	}
	if result == nil || result.Value == nil {
		return decimal.Zero, nil
	}

	raw, err := decimal.NewFromString(result.Value.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable token amount %q: %w", result.Value.Amount, err)
	}
	r.decCache.Store(mint, result.Value.Decimals)
	return raw.Shift(-int32(result.Value.Decimals)), nil
}

// NativeBalance returns the owner's SOL balance. Unlike SPL balances, a
// nonexistent account is an explicit error rather than zero.
func (r *BalanceReader) NativeBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	lamports, err := r.client.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("native balance query failed: %w", err)
	}
	if lamports == 0 {
		// Zero lamports and a zero-balance account look the same through
		// getBalance; distinguish with getAccountInfo.
		if _, err := r.client.GetAccountInfo(ctx, owner); err != nil {
			if IsAccountNotFoundError(err) {
				return decimal.Zero, fmt.Errorf("account %s: %w", owner, ErrAccountNotFound)
			}
			return decimal.Zero, err
		}
	}
	return decimal.NewFromUint64(lamports).Shift(-solDecimals), nil
}

// Decimals resolves the decimal count of a mint, trying getTokenSupply
// first, then the raw mint account layout, then a static map.
func (r *BalanceReader) Decimals(ctx context.Context, mint string) (uint8, error) {
	if cached, ok := r.decCache.Load(mint); ok {
		return cached.(uint8), nil
	}

	d, err := r.discoverDecimals(ctx, mint)
	if err != nil {
		return 0, err
	}
	r.decCache.Store(mint, d)
	return d, nil
}

func (r *BalanceReader) discoverDecimals(ctx context.Context, mint string) (uint8, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", mint, err)
	}

	if supply, err := r.client.GetTokenSupply(ctx, mintKey); err == nil &&
		supply != nil && supply.Value != nil {
		return supply.Value.Decimals, nil
	}

	if info, err := r.client.GetAccountInfo(ctx, mintKey); err == nil && info != nil && info.Value != nil {
		if data := info.Value.Data.GetBinary(); len(data) > splMintDecimalsOffset {
			return data[splMintDecimalsOffset], nil
		}
	}

	if d, ok := staticDecimals[mint]; ok {
		r.logger.Debug("Using static decimals fallback",
			zap.String("mint", mint),
			zap.Uint8("decimals", d))
		return d, nil
	}

	return 0, fmt.Errorf("failed to discover decimals for mint %s", mint)
}
