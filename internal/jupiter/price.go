package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// NativeMint is the pseudo-mint Jupiter quotes native SOL under.
const NativeMint = "So11111111111111111111111111111111111111112"

// Price returns the current USD unit price of a mint.
func (c *Client) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", mint)

	body, err := c.get(ctx, pricePath, q)
	if err != nil {
		return decimal.Zero, err
	}

	var resp struct {
		Data map[string]*struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}

	entry, ok := resp.Data[mint]
	if !ok || entry == nil || entry.Price == "" {
		return decimal.Zero, fmt.Errorf("mint %s: %w", mint, ErrPriceUnavailable)
	}

	price, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable price %q for mint %s: %w", entry.Price, mint, err)
	}
	return price, nil
}

// Snapshot fetches USD prices for the source mint, destination mint and
// SOL concurrently and stamps them with a single fetch time. Per-run price
// consistency in the ledger rests on one Snapshot being taken per swap.
func (c *Client) Snapshot(ctx context.Context, srcMint, dstMint string) (*PriceSnapshot, error) {
	snap := &PriceSnapshot{
		SrcMint: srcMint,
		DstMint: dstMint,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Src, err = c.Price(gctx, srcMint)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Dst, err = c.Price(gctx, dstMint)
		return err
	})
	g.Go(func() error {
		var err error
		snap.SOL, err = c.Price(gctx, NativeMint)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}
