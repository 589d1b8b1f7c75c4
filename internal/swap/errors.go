package swap

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StepError annotates a failure with the state it occurred in and enough
// context (mints, amount) to retry the swap manually. The underlying
// error kind passes through Unwrap untouched.
type StepError struct {
	State     State
	SrcMint   string
	DstMint   string
	USDAmount decimal.Decimal
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("swap %s -> %s for %s USD failed while %s: %v",
		e.SrcMint, e.DstMint, e.USDAmount, e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
