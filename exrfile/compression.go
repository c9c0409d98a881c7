package exrfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

func decompress(compression Compression, data []byte, expected int) ([]byte, error) {
	if compression != CompressionNone && len(data) == expected {
		// Writers keep a block uncompressed when compression does not pay off.
		return data, nil
	}

	switch compression {
	case CompressionNone:
		if len(data) != expected {
			return nil, errors.New("unexpected OpenEXR block size")
		}
		return data, nil
	case CompressionRLE:
		unpacked, err := rleUncompress(data, expected)
		if err != nil {
			return nil, err
		}
		undoPredictor(unpacked)
		return unshuffleBytes(unpacked), nil
	case CompressionZIPS, CompressionZIP:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		unpacked, err := io.ReadAll(io.LimitReader(zr, int64(expected)+1))
		if err != nil {
			return nil, err
		}
		if len(unpacked) != expected {
			return nil, errors.New("unexpected OpenEXR decompressed size")
		}
		undoPredictor(unpacked)
		return unshuffleBytes(unpacked), nil
	default:
		return nil, fmt.Errorf("unsupported OpenEXR compression %s", compression)
	}
}

// rleUncompress expands runs: a negative count byte -n is followed by n literal bytes,
// a non-negative count n is followed by one byte repeated n+1 times.
func rleUncompress(data []byte, expected int) ([]byte, error) {
	out := make([]byte, 0, expected)
	for len(data) > 0 {
		n := int(int8(data[0]))
		data = data[1:]
		if n < 0 {
			n = -n
			if len(data) < n {
				return nil, errors.New("OpenEXR RLE literal run truncated")
			}
			out = append(out, data[:n]...)
			data = data[n:]
		} else {
			if len(data) < 1 {
				return nil, errors.New("OpenEXR RLE run truncated")
			}
			for i := 0; i <= n; i++ {
				out = append(out, data[0])
			}
			data = data[1:]
		}
		if len(out) > expected {
			return nil, errors.New("OpenEXR RLE data overflows block")
		}
	}
	if len(out) != expected {
		return nil, errors.New("unexpected OpenEXR RLE decompressed size")
	}
	return out, nil
}

func undoPredictor(data []byte) {
	for i := 1; i < len(data); i++ {
		data[i] = byte(int(data[i]) + int(data[i-1]) - 128)
	}
}

func unshuffleBytes(data []byte) []byte {
	half := (len(data) + 1) / 2
	out := make([]byte, len(data))
	for i := range out {
		if i%2 == 0 {
			out[i] = data[i/2]
		} else {
			out[i] = data[half+i/2]
		}
	}
	return out
}
