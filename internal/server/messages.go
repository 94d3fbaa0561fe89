package server

import (
	"github.com/loopfi/routerd/internal/router"
)

// Request and response messages for the router service. Hand-written
// structs serialized with the canonical wire codec; there is no
// generated protobuf layer.

// ExecuteBatchRequest submits an instruction list for execution.
type ExecuteBatchRequest struct {
	// Batch is the ordered instruction list.
	Batch router.Batch `codec:"batch"`

	// Owner is the account the batch acts for.
	Owner string `codec:"owner"`

	// PubKey and Signature authenticate the batch digest. Required when
	// the node is configured to demand signatures.
	PubKey    []byte `codec:"pub_key,omitempty"`
	Signature []byte `codec:"signature,omitempty"`
}

// ExecuteBatchResponse reports a committed execution.
type ExecuteBatchResponse struct {
	Digest       []byte        `codec:"digest"`
	Cells        []router.Cell `codec:"cells"`
	FlashLoans   int           `codec:"flash_loans,omitempty"`
	Committed    bool          `codec:"committed"`
	DurationNano int64         `codec:"duration_ns"`
}

// SimulateBatchRequest runs a batch without committing its effects.
type SimulateBatchRequest struct {
	Batch router.Batch `codec:"batch"`
	Owner string       `codec:"owner"`
}

// GetExecutionRequest looks up an archived trace by batch digest.
type GetExecutionRequest struct {
	Digest []byte `codec:"digest"`
}

// GetExecutionResponse returns the archived trace.
type GetExecutionResponse struct {
	Digest       []byte        `codec:"digest"`
	Batch        router.Batch  `codec:"batch"`
	Cells        []router.Cell `codec:"cells"`
	FlashLoans   int           `codec:"flash_loans,omitempty"`
	Committed    bool          `codec:"committed"`
	DurationNano int64         `codec:"duration_ns"`
	ArchivedAt   int64         `codec:"archived_at"`
}

// ListExecutionsRequest pages through the execution journal.
type ListExecutionsRequest struct {
	Limit int `codec:"limit"`
}

// ExecutionSummary is one journal row.
type ExecutionSummary struct {
	Digest       string `codec:"digest"`
	Committed    bool   `codec:"committed"`
	Instructions int    `codec:"instructions"`
	FlashLoans   int    `codec:"flash_loans,omitempty"`
	DurationNano int64  `codec:"duration_ns"`
	Error        string `codec:"error,omitempty"`
	CreatedAt    int64  `codec:"created_at"`
}

// ListExecutionsResponse returns the most recent journal rows.
type ListExecutionsResponse struct {
	Executions []ExecutionSummary `codec:"executions"`
}
