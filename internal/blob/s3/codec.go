package s3blob

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// decompress applies codec detection strictly from the key's file extension:
// ".gz" means gzip, ".lz4" means an LZ4 frame, anything else is returned
// unchanged as plain newline-delimited JSON.
func decompress(key string, data []byte) ([]byte, error) {
	switch {
	case strings.HasSuffix(key, ".gz"):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("s3blob: gzip reader for %s: %w", key, err)
		}
		defer zr.Close()

		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("s3blob: gzip decompress %s: %w", key, err)
		}
		return out, nil

	case strings.HasSuffix(key, ".lz4"):
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("s3blob: lz4 decompress %s: %w", key, err)
		}
		return out, nil

	default:
		return data, nil
	}
}
