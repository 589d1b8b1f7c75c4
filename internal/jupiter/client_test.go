package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qcxkEzY6BpyHQzdDrRmqw5yHq3"
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

var quoteBody = `{
	"inputMint": "` + usdcMint + `",
	"outputMint": "` + bonkMint + `",
	"inAmount": "24950000",
	"outAmount": "1247500000",
	"otherAmountThreshold": "1241262500",
	"swapMode": "ExactIn",
	"slippageBps": 50,
	"priceImpactPct": "0.1",
	"routePlan": [
		{
			"swapInfo": {
				"ammKey": "amm1",
				"label": "Raydium",
				"inputMint": "` + usdcMint + `",
				"outputMint": "` + bonkMint + `",
				"inAmount": "24950000",
				"outAmount": "1247500000",
				"feeAmount": "997500",
				"feeMint": "` + bonkMint + `"
			},
			"percent": 100
		},
		{
			"swapInfo": {
				"ammKey": "amm2",
				"label": "Orca",
				"inputMint": "` + usdcMint + `",
				"outputMint": "` + bonkMint + `",
				"inAmount": "0",
				"outAmount": "0",
				"feeAmount": "2500",
				"feeMint": "` + usdcMint + `"
			}
		}
	],
	"contextSlot": 123456
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "", zap.NewNop())
}

func TestQuoteParsesRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, quotePath, r.URL.Path)
		assert.Equal(t, "24950000", r.URL.Query().Get("amount"))
		assert.Equal(t, "50", r.URL.Query().Get("slippageBps"))
		w.Write([]byte(quoteBody))
	})

	quote, err := client.Quote(context.Background(), QuoteRequest{
		InputMint:   usdcMint,
		OutputMint:  bonkMint,
		Amount:      24950000,
		SlippageBps: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, "1247500000", quote.OutAmount)
	assert.Equal(t, 50, quote.SlippageBps)
	assert.False(t, quote.FetchedAt.IsZero())
	assert.True(t, quote.PriceImpact().Equal(dec("0.1")))
	assert.JSONEq(t, quoteBody, string(quote.Raw()))

	out, err := quote.OutAmountUI(5)
	require.NoError(t, err)
	assert.True(t, out.Equal(dec("12475")), "out units: %s", out)
}

func TestQuoteNoRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
	})

	_, err := client.Quote(context.Background(), QuoteRequest{
		InputMint:  usdcMint,
		OutputMint: "UnlistedMint1111111111111111111111111111111",
		Amount:     1000,
	})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestQuoteUpstreamRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid mint"}`))
	})

	_, err := client.Quote(context.Background(), QuoteRequest{
		InputMint:  "garbage",
		OutputMint: bonkMint,
		Amount:     1000,
	})
	require.Error(t, err)
	var quoteErr *QuoteError
	require.ErrorAs(t, err, &quoteErr)
	assert.Equal(t, http.StatusBadRequest, quoteErr.StatusCode)
	assert.Contains(t, quoteErr.Error(), "invalid mint")
}

func TestQuoteExpiry(t *testing.T) {
	quote := &Quote{FetchedAt: time.Now().Add(-30 * time.Second)}
	assert.True(t, quote.Expired(time.Now(), 20*time.Second))
	assert.False(t, quote.Expired(time.Now(), time.Minute))
}

func TestRouteFeeRawSumsPerMint(t *testing.T) {
	var quote Quote
	require.NoError(t, json.Unmarshal([]byte(quoteBody), &quote))

	assert.True(t, quote.RouteFeeRaw(bonkMint).Equal(dec("997500")))
	assert.True(t, quote.RouteFeeRaw(usdcMint).Equal(dec("2500")))
	assert.True(t, quote.RouteFeeRaw("other").IsZero())
}

func TestPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pricePath, r.URL.Path)
		mint := r.URL.Query().Get("ids")
		w.Write([]byte(`{"data":{"` + mint + `":{"id":"` + mint + `","price":"0.9998"}}}`))
	})

	price, err := client.Price(context.Background(), usdcMint)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("0.9998")))
}

func TestPriceUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mint := r.URL.Query().Get("ids")
		w.Write([]byte(`{"data":{"` + mint + `":null}}`))
	})

	_, err := client.Price(context.Background(), "IlliquidMint111111111111111111111111111111")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestSnapshotOneFetchTime(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mint := r.URL.Query().Get("ids")
		price := map[string]string{
			usdcMint:   "1",
			bonkMint:   "0.00002",
			NativeMint: "150",
		}[mint]
		w.Write([]byte(`{"data":{"` + mint + `":{"id":"` + mint + `","price":"` + price + `"}}}`))
	})

	snap, err := client.Snapshot(context.Background(), usdcMint, bonkMint)
	require.NoError(t, err)

	assert.True(t, snap.Src.Equal(dec("1")))
	assert.True(t, snap.Dst.Equal(dec("0.00002")))
	assert.True(t, snap.SOL.Equal(dec("150")))
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestSwapTransactionDecodesBase64(t *testing.T) {
	rawTx := []byte{1, 2, 3, 4, 5}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, swapPath, r.URL.Path)

		var payload struct {
			QuoteResponse json.RawMessage `json:"quoteResponse"`
			UserPublicKey string          `json:"userPublicKey"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.JSONEq(t, quoteBody, string(payload.QuoteResponse))
		assert.NotEmpty(t, payload.UserPublicKey)

		resp := map[string]interface{}{
			"swapTransaction":           base64.StdEncoding.EncodeToString(rawTx),
			"lastValidBlockHeight":      987654,
			"prioritizationFeeLamports": 10000,
		}
		json.NewEncoder(w).Encode(resp)
	})

	var quote Quote
	require.NoError(t, json.Unmarshal([]byte(quoteBody), &quote))
	quote.raw = json.RawMessage(quoteBody)

	bundle, err := client.SwapTransaction(context.Background(), &quote, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, rawTx, bundle.Raw)
	assert.Equal(t, uint64(987654), bundle.LastValidBlockHeight)
	assert.Equal(t, uint64(10000), bundle.PriorityFeeLamports)
}

func TestIsTradableCachesList(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tradableMintsPath, r.URL.Path)
		calls++
		json.NewEncoder(w).Encode([]string{usdcMint, bonkMint})
	})

	ctx := context.Background()
	ok, err := client.IsTradable(ctx, usdcMint)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.IsTradable(ctx, "UnlistedMint1111111111111111111111111111111")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, calls, "tradable list should be fetched once")
}

func TestIsTradableRetriesAfterFetchFailure(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]string{usdcMint})
	})

	ctx := context.Background()
	_, err := client.IsTradable(ctx, usdcMint)
	require.Error(t, err, "first download fails")

	ok, err := client.IsTradable(ctx, usdcMint)
	require.NoError(t, err, "a failed download must not be cached")
	assert.True(t, ok)
	assert.Equal(t, 2, calls)
}

func TestQuoteErrorUnwrapsNothing(t *testing.T) {
	err := &QuoteError{StatusCode: 500, Body: ""}
	assert.Equal(t, "jupiter http 500", err.Error())
	assert.False(t, errors.Is(err, ErrNoRoute))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
