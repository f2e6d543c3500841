package shipper

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
)

// Compress gzips text into a single-member gzip stream.
func Compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(text) / 4)

	gz, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write([]byte(text)); err != nil {
		_ = gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
