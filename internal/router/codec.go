package router

import (
	"fmt"

	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/wire"
)

// EncodeNative builds a router-targeted instruction from a payload.
func EncodeNative(p NativePayload) (Instruction, error) {
	data, err := wire.Marshal(p)
	if err != nil {
		return Instruction{}, fmt.Errorf("encode %s: %w", p.Op, err)
	}
	return Instruction{Protocol: RouterProtocol, Data: data}, nil
}

// DecodeNative decodes the payload of a router-targeted instruction.
func DecodeNative(data []byte) (NativePayload, error) {
	var p NativePayload
	if err := wire.Unmarshal(data, &p); err != nil {
		return NativePayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := nativeOpNames[p.Op]; !ok {
		return NativePayload{}, fmt.Errorf("%w: unknown native op %d", ErrMalformed, uint8(p.Op))
	}
	return p, nil
}

// EncodeLending builds a protocol-targeted instruction for a gateway.
func EncodeLending(protocol string, in gateway.Instruction) (Instruction, error) {
	if protocol == RouterProtocol {
		return Instruction{}, fmt.Errorf("protocol name %q is reserved", RouterProtocol)
	}
	data, err := wire.Marshal(in)
	if err != nil {
		return Instruction{}, fmt.Errorf("encode %s for %s: %w", in.Op, protocol, err)
	}
	return Instruction{Protocol: protocol, Data: data}, nil
}

// DecodeLending decodes the payload of a protocol-targeted instruction.
func DecodeLending(data []byte) (gateway.Instruction, error) {
	var in gateway.Instruction
	if err := wire.Unmarshal(data, &in); err != nil {
		return gateway.Instruction{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !in.Op.Valid() {
		return gateway.Instruction{}, fmt.Errorf("%w: unknown lending op %d", ErrMalformed, uint8(in.Op))
	}
	return in, nil
}
