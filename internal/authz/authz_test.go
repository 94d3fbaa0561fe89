package authz

import (
	"context"
	"testing"

	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/router"
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

func TestSignVerifyBatch(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	owner := AccountID(priv.PubKey())
	batch := testBatch(t)

	sig, err := SignBatch(priv, batch)
	require.NoError(t, err)

	require.NoError(t, VerifyBatch(owner, priv.PubKey().SerializeCompressed(), sig, batch))
}

func TestVerifyBatchRejections(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	owner := AccountID(priv.PubKey())
	batch := testBatch(t)
	sig, err := SignBatch(priv, batch)
	require.NoError(t, err)

	tests := []struct {
		name   string
		owner  string
		pubKey []byte
		sig    []byte
		batch  router.Batch
	}{
		{"wrong owner", AccountID(other.PubKey()), priv.PubKey().SerializeCompressed(), sig, batch},
		{"wrong key", owner, other.PubKey().SerializeCompressed(), sig, batch},
		{"garbage key", owner, []byte{0x01, 0x02}, sig, batch},
		{"garbage signature", owner, priv.PubKey().SerializeCompressed(), []byte{0xde, 0xad}, batch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyBatch(tc.owner, tc.pubKey, tc.sig, tc.batch)
			require.ErrorIs(t, err, ErrBadSignature)
		})
	}
}

func TestVerifyBatchRejectsTamperedBatch(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	owner := AccountID(priv.PubKey())

	batch := testBatch(t)
	sig, err := SignBatch(priv, batch)
	require.NoError(t, err)

	b := router.NewBatch()
	b.PullToken(999, "USDC", "alice")
	tampered, err := b.Build()
	require.NoError(t, err)

	err = VerifyBatch(owner, priv.PubKey().SerializeCompressed(), sig, tampered)
	require.ErrorIs(t, err, ErrBadSignature)
}

// Signatures must parse under the btcec implementation too; clients in
// the wild use both libraries.
func TestSignatureCrossValidatesWithBtcec(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	batch := testBatch(t)

	sig, err := SignBatch(priv, batch)
	require.NoError(t, err)

	parsed, err := btcecdsa.ParseDERSignature(sig)
	require.NoError(t, err)

	digest, err := batch.Digest()
	require.NoError(t, err)
	assert.True(t, parsed.Verify(digest[:], priv.PubKey()))
}

func TestAccountIDDeterministic(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	id1 := AccountID(priv.PubKey())
	id2 := AccountID(priv.PubKey())
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 40, "ripemd160 digest hex-encodes to 40 chars")
}

func TestCollectAuthorizationsGroupsByProtocol(t *testing.T) {
	reg := gateway.NewRegistry()
	aave := &recordingGateway{name: "aave"}
	morpho := &recordingGateway{name: "morpho"}
	require.NoError(t, reg.Register(aave))
	require.NoError(t, reg.Register(morpho))

	b := router.NewBatch()
	in := b.PullToken(100, "USDC", "alice")
	b.Gateway("aave", gateway.Instruction{Op: gateway.OpDeposit, User: "alice", InputRef: router.InputRef(in)})
	b.Gateway("morpho", gateway.Instruction{Op: gateway.OpBorrow, Token: "WETH", Amount: 1, User: "alice"})
	b.Gateway("aave", gateway.Instruction{Op: gateway.OpRepay, Token: "USDC", Amount: 5, User: "alice"})
	batch, err := b.Build()
	require.NoError(t, err)

	calls, err := CollectAuthorizations(reg, batch, "alice")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "aave-acct", calls[0].Target, "first-referenced protocol comes first")
	assert.Equal(t, "morpho-acct", calls[1].Target)

	assert.Equal(t, 2, len(aave.sawIns), "both aave instructions grouped into one call")
	assert.Equal(t, 1, len(morpho.sawIns))
}

type recordingGateway struct {
	name   string
	sawIns []gateway.Instruction
}

func (g *recordingGateway) Name() string    { return g.name }
func (g *recordingGateway) Account() string { return g.name + "-acct" }

func (g *recordingGateway) Execute(_ context.Context, _ gateway.Funds, _ gateway.Instruction) (*gateway.Output, error) {
	return nil, nil
}

func (g *recordingGateway) Authorize(user string, ins []gateway.Instruction) ([]gateway.AuthCall, error) {
	g.sawIns = ins
	return []gateway.AuthCall{{Target: g.Account()}}, nil
}

func (g *recordingGateway) Deauthorize(user string, ins []gateway.Instruction) ([]gateway.AuthCall, error) {
	return []gateway.AuthCall{{Target: g.Account()}}, nil
}
