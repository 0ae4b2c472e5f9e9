package store

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/codevault/codevault/internal/cverr"
)

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, cverr.Wrap(cverr.KindChunkDecompressFailed, "open gzip reader", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindChunkDecompressFailed, "read gzip stream", err)
	}
	return out, nil
}
