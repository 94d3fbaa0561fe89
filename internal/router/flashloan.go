package router

import (
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
)

// flashState tracks the flash-loan orchestrator through one execution:
// Idle -> Requested -> Borrowed -> Resumed -> Settled. At most one loan
// is outstanding at a time; a second FlashLoan instruction before the
// first settles fails with FlashLoanActive.
type flashState uint8

const (
	flashIdle flashState = iota
	flashRequested
	flashBorrowed
	flashResumed
	flashSettled
)

func (s flashState) String() string {
	switch s {
	case flashIdle:
		return "idle"
	case flashRequested:
		return "requested"
	case flashBorrowed:
		return "borrowed"
	case flashResumed:
		return "resumed"
	case flashSettled:
		return "settled"
	default:
		return fmt.Sprintf("flashState(%d)", uint8(s))
	}
}

type flashLoan struct {
	state     flashState
	provider  string
	token     asset.Token
	principal uint64
	fee       uint64
}

// outstanding reports whether a loan is between Requested and Settled.
func (f *flashLoan) outstanding() bool {
	return f.state != flashIdle && f.state != flashSettled
}
