package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	quotePath         = "/swap/v1/quote"
	swapPath          = "/swap/v1/swap"
	pricePath         = "/price/v2"
	tradableMintsPath = "/tokens/v1/mints/tradable"
)

// Client talks to the Jupiter lite REST API: route quotes, swap
// transaction building, USD pricing and the tradable-mint list.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger

	tradableMu sync.Mutex
	tradable   map[string]struct{}
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://lite-api.jup.ag"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout: 12 * time.Second,
		},
		logger: logger.Named("jupiter"),
	}
}

// Quote requests a swap route for the given base-unit amount.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	if req.SlippageBps > 0 {
		q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	}

	body, err := c.get(ctx, quotePath, q)
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter quote response: %w", err)
	}
	if quote.OutAmount == "" || len(quote.RoutePlan) == 0 {
		return nil, ErrNoRoute
	}
	quote.FetchedAt = time.Now()
	quote.raw = body

	c.logger.Debug("Quote fetched",
		zap.String("input_mint", req.InputMint),
		zap.String("output_mint", req.OutputMint),
		zap.Uint64("amount", req.Amount),
		zap.String("out_amount", quote.OutAmount),
		zap.String("price_impact_pct", quote.PriceImpactPct))

	return &quote, nil
}

// SwapTransaction asks Jupiter to build the transaction implied by a
// quote. The returned bytes are a serialized, unsigned versioned
// transaction.
func (c *Client) SwapTransaction(ctx context.Context, quote *Quote, user solana.PublicKey) (*SwapBundle, error) {
	payload := struct {
		QuoteResponse    json.RawMessage `json:"quoteResponse"`
		UserPublicKey    string          `json:"userPublicKey"`
		WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
	}{
		QuoteResponse:    quote.Raw(),
		UserPublicKey:    user.String(),
		WrapAndUnwrapSol: true,
	}

	body, err := c.post(ctx, swapPath, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		SwapTransaction           string `json:"swapTransaction"`
		LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
		PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, &QuoteError{StatusCode: http.StatusOK, Body: "swap response missing transaction"}
	}

	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("swap transaction is not valid base64: %w", err)
	}

	return &SwapBundle{
		Raw:                  raw,
		LastValidBlockHeight: resp.LastValidBlockHeight,
		PriorityFeeLamports:  resp.PrioritizationFeeLamports,
	}, nil
}

// IsTradable reports whether the mint is routable on Jupiter. The full
// routable list is downloaded on first use and cached for the client's
// lifetime; a failed download is not cached and the next call retries.
func (c *Client) IsTradable(ctx context.Context, mint string) (bool, error) {
	c.tradableMu.Lock()
	defer c.tradableMu.Unlock()

	if c.tradable == nil {
		body, err := c.get(ctx, tradableMintsPath, nil)
		if err != nil {
			return false, err
		}
		var mints []string
		if err := json.Unmarshal(body, &mints); err != nil {
			return false, fmt.Errorf("failed to decode tradable mint list: %w", err)
		}
		set := make(map[string]struct{}, len(mints))
		for _, m := range mints {
			set[strings.ToLower(m)] = struct{}{}
		}
		c.tradable = set
	}

	_, ok := c.tradable[strings.ToLower(mint)]
	return ok, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if isNoRouteBody(string(body)) {
			return nil, ErrNoRoute
		}
		return nil, &QuoteError{StatusCode: res.StatusCode, Body: string(body)}
	}
	return body, nil
}
