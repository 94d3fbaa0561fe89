package server

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/loopfi/routerd/internal/wire"
)

// cborCodec serializes RPC messages with the canonical wire encoding, so
// clients and the on-disk trace archive share one format.
type cborCodec struct{}

const codecName = "cbor"

func (cborCodec) Name() string {
	return codecName
}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := wire.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	if err := wire.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(cborCodec{})
}
