package jupiter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRoute means Jupiter has no path between the two mints.
	ErrNoRoute = errors.New("no swap route between mints")

	// ErrPriceUnavailable means the price service has no quote for the
	// mint. Callers must treat this as a hard error, not a zero price.
	ErrPriceUnavailable = errors.New("no quoted price for mint")

	// ErrQuoteExpired means a quote outlived its freshness window and a
	// fresh one must be fetched before building a transaction.
	ErrQuoteExpired = errors.New("quote expired")

	// ErrMintNotTradable means the mint is not routable on Jupiter at all.
	ErrMintNotTradable = errors.New("mint is not tradable on Jupiter")
)

// QuoteError carries the upstream response when the quote service rejects
// a request (malformed mint, zero liquidity, transport failure).
type QuoteError struct {
	StatusCode int
	Body       string
}

func (e *QuoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, body)
}

// isNoRouteBody recognizes the upstream "no route" rejection across the
// response shapes Jupiter has used.
func isNoRouteBody(body string) bool {
	return strings.Contains(body, "COULD_NOT_FIND_ANY_ROUTE") ||
		strings.Contains(body, "Could not find any route") ||
		strings.Contains(body, "NO_ROUTES_FOUND")
}
