package tracestore

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// Compressor frames and compresses trace records before they hit the
// key-value store.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NoCompressor stores records verbatim.
type NoCompressor struct{}

func (c *NoCompressor) Name() string {
	return "none"
}

func (c *NoCompressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// LZ4Compressor block-compresses records. The frame is a 4-byte
// big-endian uncompressed length, one format byte (raw or lz4), then
// the payload; incompressible blocks are stored raw so decompression is
// never ambiguous.
type LZ4Compressor struct{}

const (
	frameRaw byte = 0
	frameLZ4 byte = 1
)

func (c *LZ4Compressor) Name() string {
	return "lz4"
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	buf := make([]byte, 5+lz4.CompressBlockBound(len(data)))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	buf[4] = frameLZ4

	n, err := lz4.CompressBlock(data, buf[5:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 || n >= len(data) {
		// CompressBlock reports zero bytes written for incompressible
		// input; store it raw.
		buf[4] = frameRaw
		copy(buf[5:], data)
		n = len(data)
	}
	return buf[:5+n], nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("lz4 frame too short: %d bytes", len(data))
	}
	size := binary.BigEndian.Uint32(data[:4])
	out := make([]byte, size)

	switch data[4] {
	case frameRaw:
		if uint32(len(data)-5) != size {
			return nil, fmt.Errorf("raw frame length %d does not match header %d", len(data)-5, size)
		}
		copy(out, data[5:])
		return out, nil
	case frameLZ4:
		n, err := lz4.UncompressBlock(data[5:], out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("unknown frame format %d", data[4])
	}
}
