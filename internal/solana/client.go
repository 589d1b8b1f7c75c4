package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Client adapts the solana-go RPC client with primary/fallback failover:
// every call runs against the primary node first and is repeated against
// the fallback when the primary errors. Not-found results are answers,
// not failures, and never fail over.
type Client struct {
	nodes  []*rpc.Client
	urls   []string
	logger *zap.Logger
}

var (
	ErrAccountNotFound = errors.New("account not found")
)

// IsAccountNotFoundError reports whether err means the queried account
// does not exist on-chain.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find account")
}

// NewClient creates a client from a primary RPC URL and an optional
// fallback URL. An empty fallback leaves the client single-node.
func NewClient(rpcURL, fallbackURL string, logger *zap.Logger) *Client {
	nodes := []*rpc.Client{rpc.New(rpcURL)}
	urls := []string{rpcURL}
	if fallbackURL != "" {
		nodes = append(nodes, rpc.New(fallbackURL))
		urls = append(urls, fallbackURL)
	}
	return &Client{
		nodes:  nodes,
		urls:   urls,
		logger: logger.Named("solana-client"),
	}
}

// withFailover runs fn against each node in order until one succeeds.
// A canceled context or a not-found error stops the chain immediately:
// retrying either against another node cannot change the answer.
func (c *Client) withFailover(ctx context.Context, method string, fn func(node *rpc.Client) error) error {
	var err error
	for i, node := range c.nodes {
		err = fn(node)
		if err == nil || ctx.Err() != nil || IsAccountNotFoundError(err) {
			return err
		}
		if i < len(c.nodes)-1 {
			c.logger.Warn("RPC call failed, trying fallback node",
				zap.String("method", method),
				zap.String("url", c.urls[i]),
				zap.Error(err))
		}
	}
	return err
}

// GetBalance returns the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	var lamports uint64
	err := c.withFailover(ctx, "getBalance", func(node *rpc.Client) error {
		result, err := node.GetBalance(ctx, pubkey, commitment)
		if err != nil {
			return err
		}
		lamports = result.Value
		return nil
	})
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return lamports, nil
}

// GetAccountInfo fetches raw account info. Returns rpc.ErrNotFound for
// accounts that do not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	var info *rpc.GetAccountInfoResult
	err := c.withFailover(ctx, "getAccountInfo", func(node *rpc.Client) error {
		result, err := node.GetAccountInfo(ctx, pubkey)
		if err != nil {
			return err
		}
		info = result
		return nil
	})
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return info, nil
}

// GetTokenAccountBalance returns the balance of a token account.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error) {
	var balance *rpc.GetTokenAccountBalanceResult
	err := c.withFailover(ctx, "getTokenAccountBalance", func(node *rpc.Client) error {
		result, err := node.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		balance = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// GetTokenSupply returns the total supply of a mint, which carries the
// mint's decimal count.
func (c *Client) GetTokenSupply(ctx context.Context, mint solana.PublicKey) (*rpc.GetTokenSupplyResult, error) {
	var supply *rpc.GetTokenSupplyResult
	err := c.withFailover(ctx, "getTokenSupply", func(node *rpc.Client) error {
		result, err := node.GetTokenSupply(ctx, mint, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		supply = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return supply, nil
}

// SendRawTransaction submits a serialized signed transaction.
func (c *Client) SendRawTransaction(ctx context.Context, serialized []byte, skipPreflight bool) (solana.Signature, error) {
	encoded := base64.StdEncoding.EncodeToString(serialized)
	var sig solana.Signature
	err := c.withFailover(ctx, "sendTransaction", func(node *rpc.Client) error {
		result, err := node.SendEncodedTransactionWithOpts(
			ctx,
			encoded,
			rpc.TransactionOpts{
				SkipPreflight:       skipPreflight,
				PreflightCommitment: rpc.CommitmentProcessed,
			},
		)
		if err != nil {
			return err
		}
		sig = result
		return nil
	})
	if err != nil {
		c.logger.Error("SendRawTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatuses returns confirmation statuses for the given signatures.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	var statuses *rpc.GetSignatureStatusesResult
	err := c.withFailover(ctx, "getSignatureStatuses", func(node *rpc.Client) error {
		result, err := node.GetSignatureStatuses(ctx, true, signatures...)
		if err != nil {
			return err
		}
		statuses = result
		return nil
	})
	if err != nil {
		c.logger.Error("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	return statuses, nil
}

// GetTransactionMeta fetches a confirmed transaction's metadata, used to
// read the network fee actually paid.
func (c *Client) GetTransactionMeta(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	maxVersion := uint64(0)
	var tx *rpc.GetTransactionResult
	err := c.withFailover(ctx, "getTransaction", func(node *rpc.Client) error {
		result, err := node.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return err
		}
		tx = result
		return nil
	})
	if err != nil {
		c.logger.Debug("GetTransaction error",
			zap.String("signature", signature.String()),
			zap.Error(err))
		return nil, err
	}
	return tx, nil
}
