package s3

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"mediglot/internal/audit"
)

// encodeBatch renders the batch as newline-delimited JSON and compresses it
// with gzip. JSONL keeps the object streamable for downstream tooling.
func encodeBatch(batch []audit.Event) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	for _, e := range batch {
		if err := enc.Encode(e); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
