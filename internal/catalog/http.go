package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/strongdm/mdc/internal/schema"
)

const maxCatalogBytes = 32 << 20

// FetchError reports a failed catalog download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch catalog %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch catalog %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPSource downloads a JSON catalog.
type HTTPSource struct {
	URL       string
	Client    *http.Client
	UserAgent string
}

func (s *HTTPSource) String() string { return s.URL }

// Load fetches and decodes the catalog. gzip, deflate, br and zstd response
// encodings are accepted.
func (s *HTTPSource) Load(ctx context.Context) (schema.Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: s.URL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "zstd, br, gzip, deflate")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: s.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: s.URL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, &FetchError{URL: s.URL, StatusCode: resp.StatusCode, Err: err}
	}
	cat, err := schema.Decode(body)
	if err != nil {
		return nil, &FetchError{URL: s.URL, StatusCode: resp.StatusCode, Err: err}
	}
	return cat, nil
}

func decodeBody(encoding string, r io.Reader) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.ReadAll(r)
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer reader.Close()
		return readAll(reader)
	case "deflate":
		reader := flate.NewReader(r)
		defer reader.Close()
		return readAll(reader)
	case "br":
		return readAll(brotli.NewReader(r))
	case "zstd":
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer decoder.Close()
		return readAll(decoder)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// readAll caps decompressed output at maxCatalogBytes.
func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxCatalogBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxCatalogBytes {
		return nil, fmt.Errorf("catalog exceeds %d bytes", maxCatalogBytes)
	}
	return data, nil
}
