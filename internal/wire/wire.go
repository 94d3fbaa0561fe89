// Package wire provides the canonical byte encoding used for instruction
// payloads, persisted venue state and archived traces. CBOR with
// canonical map ordering, so equal values always produce equal bytes and
// batch digests are stable.
package wire

import (
	"github.com/ugorji/go/codec"
)

func newHandle() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}

// Marshal encodes v to canonical CBOR.
func Marshal(v interface{}) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, newHandle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal decodes canonical CBOR into v.
func Unmarshal(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, newHandle())
	return dec.Decode(v)
}
