package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/routerd/internal/gateway"
)

func TestBuilderPredictsCellIndexes(t *testing.T) {
	b := NewBatch()

	in := b.PullToken(100, "USDC", "alice")
	fee, rem := b.Split(in, 30)
	sum := b.Add(fee, rem)
	out := b.Gateway("aave", gateway.Instruction{Op: gateway.OpDeposit, User: "alice", InputRef: InputRef(sum)})
	b.PushToken(out, "alice")

	assert.Equal(t, CellRef(0), in)
	assert.Equal(t, CellRef(1), fee)
	assert.Equal(t, CellRef(2), rem)
	assert.Equal(t, CellRef(3), sum)
	assert.Equal(t, CellRef(4), out)

	batch, err := b.Build()
	require.NoError(t, err)
	require.Len(t, batch, 5)

	// PushToken and Approve produce no cells; ops that do produce must
	// line up with the refs above when executed.
	p, err := DecodeNative(batch[0].Data)
	require.NoError(t, err)
	assert.Equal(t, OpPullToken, p.Op)

	p, err = DecodeNative(batch[4].Data)
	require.NoError(t, err)
	assert.Equal(t, OpPushToken, p.Op)
	assert.Equal(t, uint32(4), p.A)
}

func TestBuilderFirstErrorSticks(t *testing.T) {
	b := NewBatch()
	b.PullToken(1, "USDC", "alice")
	b.Gateway(RouterProtocol, gateway.Instruction{Op: gateway.OpDeposit}) // reserved name
	b.PullToken(2, "USDC", "alice")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestBuilderEmptyBatch(t *testing.T) {
	batch, err := NewBatch().Build()
	require.NoError(t, err)
	assert.Empty(t, batch)
}
