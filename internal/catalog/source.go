// Package catalog acquires the MDC component catalog from a URL or a local
// file, caches it with a time-to-live and notifies subscribers on refresh.
package catalog

import (
	"context"
	"net/http"
	"strings"

	"github.com/strongdm/mdc/internal/schema"
)

// Source loads a complete catalog.
type Source interface {
	Load(ctx context.Context) (schema.Catalog, error)
	String() string
}

// NewSource returns an HTTPSource for http(s) references and a FileSource
// otherwise. A nil client uses http.DefaultClient.
func NewSource(ref string, client *http.Client) Source {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return &HTTPSource{URL: ref, Client: client}
	}
	return &FileSource{Path: strings.TrimPrefix(ref, "file://")}
}

// StaticSource serves a fixed catalog.
type StaticSource schema.Catalog

func (s StaticSource) Load(context.Context) (schema.Catalog, error) {
	return schema.Catalog(s), nil
}

func (s StaticSource) String() string { return "static" }
