// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression identifies how a stored snapshot is encoded. The values
// are written to the database; do not renumber them.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration value. The empty string
// selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "zstd":
		return CompressionZstd, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("persist: unknown compression %q", name)
	}
}

var errIncompressible = errors.New("persist: data does not compress")

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("persist: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("persist: zstd decoder initialization failed: " + err.Error())
	}
}

// compress encodes data with the preferred compression, falling back
// to CompressionNone when compression would not save space. It
// returns the encoding actually used.
func compress(data []byte, preferred Compression) ([]byte, Compression, error) {
	switch preferred {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionZstd:
		compressed, err := compressZstd(data)
		if errors.Is(err, errIncompressible) {
			return data, CompressionNone, nil
		}
		if err != nil {
			return nil, 0, err
		}
		return compressed, CompressionZstd, nil
	default:
		return nil, 0, fmt.Errorf("persist: unsupported compression %s", preferred)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

// decompress reverses compress and checks the result against the
// recorded uncompressed size.
func decompress(data []byte, encoding Compression, size int) ([]byte, error) {
	var result []byte
	switch encoding {
	case CompressionNone:
		result = data
	case CompressionZstd:
		decoded, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("persist: zstd decompress: %w", err)
		}
		result = decoded
	default:
		return nil, fmt.Errorf("persist: unsupported compression %s", encoding)
	}
	if len(result) != size {
		return nil, fmt.Errorf("persist: %s snapshot is %d bytes, expected %d", encoding, len(result), size)
	}
	return result, nil
}
