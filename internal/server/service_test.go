package server

import (
	"context"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loopfi/routerd/internal/authz"
	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/router"
	"github.com/loopfi/routerd/internal/storage/history"
)

func testBatch(t *testing.T) router.Batch {
	t.Helper()
	b := router.NewBatch()
	in := b.PullToken(100, "USDC", "alice")
	b.Approve(in, "aave")
	b.Gateway("aave", gateway.Instruction{Op: gateway.OpDeposit, User: "alice", InputRef: router.InputRef(in)})
	batch, err := b.Build()
	require.NoError(t, err)
	return batch
}

func TestExecutionStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"invalid index", &router.ExecError{Index: 0, Code: router.CodeInvalidIndex}, codes.InvalidArgument},
		{"token mismatch", &router.ExecError{Index: 1, Code: router.CodeTokenMismatch}, codes.InvalidArgument},
		{"fraction too large", &router.ExecError{Index: 2, Code: router.CodeFractionTooLarge}, codes.InvalidArgument},
		{"underflow", &router.ExecError{Index: 3, Code: router.CodeUnderflow}, codes.InvalidArgument},
		{"malformed", &router.ExecError{Index: 0, Code: router.CodeMalformed}, codes.InvalidArgument},
		{"unauthorized", &router.ExecError{Index: 4, Code: router.CodeUnauthorized}, codes.PermissionDenied},
		{"insufficient funds", &router.ExecError{Index: 5, Code: router.CodeInsufficientFunds}, codes.FailedPrecondition},
		{"insufficient output", &router.ExecError{Index: 6, Code: router.CodeInsufficientOutput}, codes.FailedPrecondition},
		{"flash loan unrepaid", &router.ExecError{Index: 7, Code: router.CodeFlashLoanUnrepaid}, codes.FailedPrecondition},
		{"flash loan active", &router.ExecError{Index: 8, Code: router.CodeFlashLoanActive}, codes.FailedPrecondition},
		{"plain error", errors.New("boom"), codes.Internal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(executionStatus(tc.err))
			require.True(t, ok)
			assert.Equal(t, tc.want, st.Code())
			assert.Contains(t, st.Message(), tc.err.Error())
		})
	}
}

func TestAuthenticate(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	batch := testBatch(t)
	sig, err := authz.SignBatch(priv, batch)
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	owner := authz.AccountID(priv.PubKey())

	t.Run("unsigned accepted when optional", func(t *testing.T) {
		s := NewService(nil, nil)
		require.NoError(t, s.authenticate(&ExecuteBatchRequest{Batch: batch}))
	})

	t.Run("unsigned rejected when required", func(t *testing.T) {
		s := NewService(nil, nil, WithSignatureRequired(true))
		err := s.authenticate(&ExecuteBatchRequest{Batch: batch})
		require.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("signed without owner", func(t *testing.T) {
		s := NewService(nil, nil)
		err := s.authenticate(&ExecuteBatchRequest{Batch: batch, PubKey: pub, Signature: sig})
		require.Error(t, err)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("valid signature", func(t *testing.T) {
		s := NewService(nil, nil, WithSignatureRequired(true))
		require.NoError(t, s.authenticate(&ExecuteBatchRequest{
			Batch: batch, Owner: owner, PubKey: pub, Signature: sig,
		}))
	})

	t.Run("wrong owner rejected", func(t *testing.T) {
		s := NewService(nil, nil)
		err := s.authenticate(&ExecuteBatchRequest{
			Batch: batch, Owner: "someone-else", PubKey: pub, Signature: sig,
		})
		require.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

type fakeJournal struct {
	recent    []history.Record
	lastLimit int
}

func (f *fakeJournal) Insert(ctx context.Context, rec history.Record) error { return nil }

func (f *fakeJournal) Get(ctx context.Context, digest string) (*history.Record, error) {
	return nil, nil
}

func (f *fakeJournal) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	f.lastLimit = limit
	return f.recent, nil
}

func (f *fakeJournal) Close() error { return nil }

func TestListExecutions(t *testing.T) {
	j := &fakeJournal{recent: []history.Record{
		{Digest: "d1", Committed: true, Instructions: 3},
		{Digest: "d2", Committed: false, Error: "instruction 1: Underflow"},
	}}
	s := NewService(nil, nil, WithJournal(j))
	ctx := context.Background()

	resp, err := s.ListExecutions(ctx, &ListExecutionsRequest{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, j.lastLimit)
	require.Len(t, resp.Executions, 2)
	assert.Equal(t, "d1", resp.Executions[0].Digest)
	assert.True(t, resp.Executions[0].Committed)
	assert.Contains(t, resp.Executions[1].Error, "Underflow")

	_, err = s.ListExecutions(ctx, &ListExecutionsRequest{Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 50, j.lastLimit, "zero limit falls back to the default page")

	_, err = s.ListExecutions(ctx, &ListExecutionsRequest{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, 50, j.lastLimit, "oversized limit falls back to the default page")
}

func TestListExecutionsDisabled(t *testing.T) {
	s := NewService(nil, nil)
	_, err := s.ListExecutions(context.Background(), &ListExecutionsRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
