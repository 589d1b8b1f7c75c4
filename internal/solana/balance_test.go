package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	usdcMint  = "EPjFWdd5AufqSSqeM2qcxkEzY6BpyHQzdDrRmqw5yHq3"
	bonkMint  = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	tokenProg = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

type rpcRequest struct {
	ID     interface{}       `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeNode answers JSON-RPC calls from a per-method table and counts
// invocations.
type fakeNode struct {
	methods map[string]func(req rpcRequest) (interface{}, *rpcErr)
	calls   map[string]int
}

func newReader(t *testing.T, methods map[string]func(req rpcRequest) (interface{}, *rpcErr)) (*BalanceReader, *fakeNode) {
	t.Helper()
	node := &fakeNode{methods: methods, calls: map[string]int{}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		node.calls[req.Method]++

		handler, ok := node.methods[req.Method]
		if !ok {
			t.Fatalf("unexpected RPC method %s", req.Method)
		}
		result, rpcError := handler(req)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcError != nil {
			resp["error"] = rpcError
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return NewBalanceReader(NewClient(server.URL, "", zap.NewNop()), zap.NewNop()), node
}

func withValue(value interface{}) interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   value,
	}
}

func TestUIBalanceShiftsByDecimals(t *testing.T) {
	reader, _ := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getTokenAccountBalance": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(map[string]interface{}{
				"amount":         "1500000",
				"decimals":       6,
				"uiAmountString": "1.5",
			}), nil
		},
	})

	balance, err := reader.UIBalance(context.Background(), usdcMint, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.5")), "balance: %s", balance)
}

func TestUIBalanceMissingTokenAccountIsZero(t *testing.T) {
	reader, _ := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getTokenAccountBalance": func(rpcRequest) (interface{}, *rpcErr) {
			return nil, &rpcErr{Code: -32602, Message: "Invalid param: could not find account"}
		},
	})

	balance, err := reader.UIBalance(context.Background(), bonkMint, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestUIBalanceCachesDecimals(t *testing.T) {
	reader, node := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getTokenAccountBalance": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(map[string]interface{}{
				"amount":   "1500000",
				"decimals": 6,
			}), nil
		},
	})

	_, err := reader.UIBalance(context.Background(), usdcMint, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	d, err := reader.Decimals(context.Background(), usdcMint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)
	assert.Zero(t, node.calls["getTokenSupply"], "cached decimals need no supply lookup")
}

func TestNativeBalance(t *testing.T) {
	reader, _ := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getBalance": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(uint64(1500000000)), nil
		},
	})

	balance, err := reader.NativeBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.5")))
}

func TestNativeBalanceNonexistentAccount(t *testing.T) {
	reader, _ := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getBalance": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(uint64(0)), nil
		},
		"getAccountInfo": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(nil), nil
		},
	})

	_, err := reader.NativeBalance(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDecimalsFromTokenSupply(t *testing.T) {
	reader, node := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getTokenSupply": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(map[string]interface{}{
				"amount":   "1000000000000",
				"decimals": 5,
			}), nil
		},
	})

	d, err := reader.Decimals(context.Background(), bonkMint)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), d)

	// Second lookup is served from the cache.
	_, err = reader.Decimals(context.Background(), bonkMint)
	require.NoError(t, err)
	assert.Equal(t, 1, node.calls["getTokenSupply"])
}

func TestDecimalsFromMintAccountLayout(t *testing.T) {
	mintData := make([]byte, 82)
	mintData[splMintDecimalsOffset] = 7

	reader, _ := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getTokenSupply": func(rpcRequest) (interface{}, *rpcErr) {
			return nil, &rpcErr{Code: -32602, Message: "not a Token mint"}
		},
		"getAccountInfo": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(map[string]interface{}{
				"data":       []string{base64.StdEncoding.EncodeToString(mintData), "base64"},
				"executable": false,
				"lamports":   1461600,
				"owner":      tokenProg,
				"rentEpoch":  0,
			}), nil
		},
	})

	d, err := reader.Decimals(context.Background(), bonkMint)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), d)
}

func TestDecimalsStaticFallback(t *testing.T) {
	reader, _ := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getTokenSupply": func(rpcRequest) (interface{}, *rpcErr) {
			return nil, &rpcErr{Code: -32000, Message: "node is behind"}
		},
		"getAccountInfo": func(rpcRequest) (interface{}, *rpcErr) {
			return nil, &rpcErr{Code: -32000, Message: "node is behind"}
		},
	})

	d, err := reader.Decimals(context.Background(), usdcMint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)
}

func TestDecimalsUnknownMintFails(t *testing.T) {
	reader, _ := newReader(t, map[string]func(req rpcRequest) (interface{}, *rpcErr){
		"getTokenSupply": func(rpcRequest) (interface{}, *rpcErr) {
			return nil, &rpcErr{Code: -32000, Message: "node is behind"}
		},
		"getAccountInfo": func(rpcRequest) (interface{}, *rpcErr) {
			return withValue(nil), nil
		},
	})

	_, err := reader.Decimals(context.Background(), bonkMint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover decimals")
}
