package router

import (
	"errors"
	"fmt"
)

// Code classifies an execution failure. Every failure aborts the whole
// batch; codes exist so callers can diagnose without re-running.
type Code uint8

const (
	// CodeInvalidIndex: an instruction referenced a cell index that does
	// not exist yet.
	CodeInvalidIndex Code = iota + 1

	// CodeTokenMismatch: a two-cell operation crossed tokens.
	CodeTokenMismatch

	// CodeFractionTooLarge: a Split fraction exceeded 10000 bps.
	CodeFractionTooLarge

	// CodeUnderflow: Subtract would have produced a negative amount.
	CodeUnderflow

	// CodeInsufficientFunds: a custody-moving instruction referenced an
	// amount the engine does not actually hold (e.g. a virtual cell with
	// no backing tokens).
	CodeInsufficientFunds

	// CodeInsufficientOutput: a venue could not provide the requested
	// amount and no clamping policy applies.
	CodeInsufficientOutput

	// CodeUnauthorized: a gateway lacked a required permission or drew
	// beyond its approved allowance.
	CodeUnauthorized

	// CodeFlashLoanUnrepaid: the continuation finished without returning
	// principal plus fee to the provider.
	CodeFlashLoanUnrepaid

	// CodeFlashLoanActive: a second flash loan was requested before the
	// first settled.
	CodeFlashLoanActive

	// CodeMalformed: an instruction payload failed to decode.
	CodeMalformed

	// CodeProtocolError: a venue-specific failure bubbled up unmodified.
	CodeProtocolError
)

var codeNames = map[Code]string{
	CodeInvalidIndex:       "InvalidIndex",
	CodeTokenMismatch:      "TokenMismatch",
	CodeFractionTooLarge:   "FractionTooLarge",
	CodeUnderflow:          "Underflow",
	CodeInsufficientFunds:  "InsufficientFunds",
	CodeInsufficientOutput: "InsufficientOutput",
	CodeUnauthorized:       "Unauthorized",
	CodeFlashLoanUnrepaid:  "FlashLoanUnrepaid",
	CodeFlashLoanActive:    "FlashLoanActive",
	CodeMalformed:          "Malformed",
	CodeProtocolError:      "ProtocolError",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Sentinels for errors.Is matching. An *ExecError unwraps to the
// sentinel of its code.
var (
	ErrInvalidIndex       = errors.New("invalid cell index")
	ErrTokenMismatch      = errors.New("token mismatch")
	ErrFractionTooLarge   = errors.New("fraction exceeds 10000 bps")
	ErrUnderflow          = errors.New("subtraction underflow")
	ErrInsufficientFunds  = errors.New("insufficient held funds")
	ErrInsufficientOutput = errors.New("insufficient output")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrFlashLoanUnrepaid  = errors.New("flash loan not repaid")
	ErrFlashLoanActive    = errors.New("flash loan already active")
	ErrMalformed          = errors.New("malformed instruction payload")
	ErrProtocolError      = errors.New("protocol error")
)

var codeSentinels = map[Code]error{
	CodeInvalidIndex:       ErrInvalidIndex,
	CodeTokenMismatch:      ErrTokenMismatch,
	CodeFractionTooLarge:   ErrFractionTooLarge,
	CodeUnderflow:          ErrUnderflow,
	CodeInsufficientFunds:  ErrInsufficientFunds,
	CodeInsufficientOutput: ErrInsufficientOutput,
	CodeUnauthorized:       ErrUnauthorized,
	CodeFlashLoanUnrepaid:  ErrFlashLoanUnrepaid,
	CodeFlashLoanActive:    ErrFlashLoanActive,
	CodeMalformed:          ErrMalformed,
	CodeProtocolError:      ErrProtocolError,
}

// ExecError reports which instruction failed and why. Index is the
// position in the submitted batch.
type ExecError struct {
	Index int
	Code  Code
	Err   error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("instruction %d: %s: %v", e.Index, e.Code, e.Err)
	}
	return fmt.Sprintf("instruction %d: %s", e.Index, e.Code)
}

// Unwrap exposes the code sentinel and any underlying cause for
// errors.Is / errors.As.
func (e *ExecError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func execErr(index int, code Code, err error) *ExecError {
	return &ExecError{Index: index, Code: code, Err: err}
}

func execErrf(index int, code Code, format string, args ...interface{}) *ExecError {
	return &ExecError{Index: index, Code: code, Err: fmt.Errorf(format, args...)}
}
