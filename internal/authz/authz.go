// Package authz is the out-of-band authorization helper: it derives
// account IDs from keys, signs and verifies batch digests, and collects
// the permission calls a user must perform before a batch can execute.
// The engine itself only ever sees the Verify result.
package authz

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/crypto/ripemd160"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/router"
)

// ErrBadSignature: the signature does not verify against the batch
// digest, or the key does not belong to the claimed owner.
var ErrBadSignature = errors.New("bad batch signature")

// AccountID derives the account identifier for a public key:
// hex(ripemd160(sha256(compressed pubkey))).
func AccountID(pub *secp256k1.PublicKey) string {
	sha := sha256.Sum256(pub.SerializeCompressed())
	h := ripemd160.New()
	h.Write(sha[:])
	return hex.EncodeToString(h.Sum(nil))
}

// SignBatch signs the canonical batch digest, returning a DER signature.
func SignBatch(priv *secp256k1.PrivateKey, batch router.Batch) ([]byte, error) {
	digest, err := batch.Digest()
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(priv, digest[:]).Serialize(), nil
}

// VerifyBatch checks that sig is a valid signature over the batch digest
// by pubKey and that pubKey belongs to owner.
func VerifyBatch(owner string, pubKey, sig []byte, batch router.Batch) error {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return fmt.Errorf("%w: parse public key: %v", ErrBadSignature, err)
	}
	if AccountID(pub) != owner {
		return fmt.Errorf("%w: key does not belong to %s", ErrBadSignature, owner)
	}

	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("%w: parse signature: %v", ErrBadSignature, err)
	}
	digest, err := batch.Digest()
	if err != nil {
		return err
	}
	if !parsed.Verify(digest[:], pub) {
		return fmt.Errorf("%w: verification failed for %s", ErrBadSignature, owner)
	}
	return nil
}

// CollectAuthorizations walks a batch and asks each referenced gateway
// for the permission calls user must perform before submitting it.
// Calls are returned grouped in first-reference order.
func CollectAuthorizations(reg *gateway.Registry, batch router.Batch, user string) ([]gateway.AuthCall, error) {
	return collect(reg, batch, user, gateway.Gateway.Authorize)
}

// CollectDeauthorizations returns the calls revoking those permissions.
func CollectDeauthorizations(reg *gateway.Registry, batch router.Batch, user string) ([]gateway.AuthCall, error) {
	return collect(reg, batch, user, gateway.Gateway.Deauthorize)
}

func collect(reg *gateway.Registry, batch router.Batch, user string,
	fn func(gateway.Gateway, string, []gateway.Instruction) ([]gateway.AuthCall, error)) ([]gateway.AuthCall, error) {

	order := make([]string, 0)
	grouped := make(map[string][]gateway.Instruction)
	for _, ins := range batch {
		if ins.Protocol == router.RouterProtocol {
			continue
		}
		in, err := router.DecodeLending(ins.Data)
		if err != nil {
			return nil, err
		}
		if _, seen := grouped[ins.Protocol]; !seen {
			order = append(order, ins.Protocol)
		}
		grouped[ins.Protocol] = append(grouped[ins.Protocol], in)
	}

	var calls []gateway.AuthCall
	for _, name := range order {
		gw, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		got, err := fn(gw, user, grouped[name])
		if err != nil {
			return nil, fmt.Errorf("authorize against %s: %w", name, err)
		}
		calls = append(calls, got...)
	}
	return calls, nil
}
