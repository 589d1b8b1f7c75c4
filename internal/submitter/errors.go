package submitter

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// SubmissionError means the RPC endpoint rejected the transaction:
// insufficient balance, slippage exceeded, simulation failure.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transaction rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transaction rejected: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ConfirmationTimeoutError means the transaction was submitted but not
// confirmed within the deadline. It carries the signature because the
// transaction may still land; callers reconcile later using it.
type ConfirmationTimeoutError struct {
	Signature solana.Signature
	Timeout   time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed within %s", e.Signature, e.Timeout)
}

// isBlockhashNotFound recognizes the transient send failure worth retrying
// with the same payload.
func isBlockhashNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BlockhashNotFound")
}

// classifyReason extracts a short operator-facing label from an RPC
// rejection.
func classifyReason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient lamports"), strings.Contains(msg, "insufficient funds"):
		return "insufficient balance"
	case strings.Contains(msg, "ExceededSlippage"), strings.Contains(msg, "0x1771"), strings.Contains(msg, "0x1774"):
		return "slippage exceeded"
	case strings.Contains(msg, "Transaction simulation failed"):
		return "simulation failure"
	default:
		return ""
	}
}
