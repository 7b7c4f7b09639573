// Package session owns the caches of one completion host: open documents and
// their split lines, YAML boundaries, and the schema index over the current
// catalog.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/strongdm/mdc/internal/autocomplete"
	"github.com/strongdm/mdc/internal/document"
	"github.com/strongdm/mdc/internal/eventlog"
	"github.com/strongdm/mdc/internal/scan"
	"github.com/strongdm/mdc/internal/schema"
)

// ErrUnknownDocument is returned for requests against a document that is not
// open in the session.
var ErrUnknownDocument = errors.New("document not open")

// Options configures a Session.
type Options struct {
	DisableProperties bool
	Logger            *eventlog.Logger
}

// Session tracks open MDC documents and invalidates derived state when a
// document changes or the catalog is replaced.
type Session struct {
	mu     sync.RWMutex
	docs   map[string]document.Text
	lines  *document.Store
	bounds *scan.BoundaryCache
	index  *schema.Index
	opts   Options
}

// New returns a session serving cat.
func New(cat schema.Catalog, opts Options) *Session {
	return &Session{
		docs:   make(map[string]document.Text),
		lines:  document.NewStore(),
		bounds: scan.NewBoundaryCache(),
		index:  schema.NewIndex(cat),
		opts:   opts,
	}
}

// Index exposes the schema index.
func (s *Session) Index() *schema.Index { return s.index }

// Open starts tracking doc. Documents that are neither .md/.mdc files nor
// tagged with an mdc/markdown language id are ignored; the return value
// reports whether doc is tracked.
func (s *Session) Open(doc document.Text) bool {
	if !document.IsMarkdown(doc.ID, doc.LanguageID) {
		s.opts.Logger.Debug("document.ignored", map[string]any{"uri": doc.ID, "language": doc.LanguageID})
		return false
	}
	s.mu.Lock()
	_, existed := s.docs[doc.ID]
	s.docs[doc.ID] = doc
	s.InvalidateDocument(doc.ID)
	s.mu.Unlock()
	if !existed {
		s.opts.Logger.Debug("document.open", map[string]any{"uri": doc.ID})
	}
	return true
}

// Change replaces the text of an open document, opening it when needed.
func (s *Session) Change(doc document.Text) bool {
	s.mu.Lock()
	prev, ok := s.docs[doc.ID]
	if ok {
		if doc.LanguageID == "" {
			doc.LanguageID = prev.LanguageID
		}
		s.docs[doc.ID] = doc
		s.InvalidateDocument(doc.ID)
	}
	s.mu.Unlock()
	if !ok {
		return s.Open(doc)
	}
	return true
}

// Close stops tracking uri. Closing the last open document also drops the
// component-derived caches.
func (s *Session) Close(uri string) {
	s.mu.Lock()
	_, ok := s.docs[uri]
	delete(s.docs, uri)
	remaining := len(s.docs)
	s.InvalidateDocument(uri)
	if ok && remaining == 0 {
		s.index.Clear()
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.opts.Logger.Debug("document.close", map[string]any{"uri": uri, "remaining": remaining})
	if remaining == 0 {
		s.opts.Logger.Debug("session.clear_component_caches", nil)
	}
}

// InvalidateDocument drops the lines and YAML boundaries cached for uri.
func (s *Session) InvalidateDocument(uri string) {
	s.lines.Invalidate(uri)
	s.bounds.Invalidate(uri)
}

// SetCatalog replaces the catalog and drops every schema-derived fact. It
// waits for in-flight completions so none of them memoizes facts from the
// old catalog into the new index.
func (s *Session) SetCatalog(cat schema.Catalog) {
	s.mu.Lock()
	s.index.Reset(cat)
	s.mu.Unlock()
	s.opts.Logger.Event("session.catalog", map[string]any{"components": len(cat)})
}

// InvalidateCatalog drops schema-derived facts while keeping the catalog.
func (s *Session) InvalidateCatalog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Clear()
}

// SetPropertyCompletion toggles property suggestions.
func (s *Session) SetPropertyCompletion(enabled bool) {
	s.mu.Lock()
	s.opts.DisableProperties = !enabled
	s.mu.Unlock()
}

// Documents lists the URIs currently open.
func (s *Session) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	return out
}

// Lines returns the split lines of an open document.
func (s *Session) Lines(uri string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linesLocked(uri)
}

func (s *Session) linesLocked(uri string) ([]string, error) {
	doc, ok := s.docs[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	return s.lines.Lines(doc), nil
}

// Context classifies a line of an open document using the session caches.
func (s *Session) Context(uri string, line int) (scan.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines, err := s.linesLocked(uri)
	if err != nil {
		return scan.Context{}, err
	}
	return s.bounds.Analyze(uri, lines, line), nil
}

// Complete returns completion items for pos in the document at uri. The
// session is read-locked for the whole request so a concurrent change cannot
// interleave with cache population.
func (s *Session) Complete(uri string, pos autocomplete.Position, trigger autocomplete.Trigger) ([]autocomplete.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines, err := s.linesLocked(uri)
	if err != nil {
		return nil, err
	}
	items := autocomplete.Complete(s.index, autocomplete.Request{
		Lines:    lines,
		Position: pos,
		Trigger:  trigger,
	}, autocomplete.Options{
		DisableProperties: s.opts.DisableProperties,
		Analyze: func(lines []string, line int) scan.Context {
			return s.bounds.Analyze(uri, lines, line)
		},
	})
	s.opts.Logger.Debug("session.complete", map[string]any{
		"uri":       uri,
		"line":      pos.Line,
		"character": pos.Character,
		"items":     len(items),
	})
	return items, nil
}

// Fold returns the folding ranges of the document at uri.
func (s *Session) Fold(uri string) ([]scan.Range, error) {
	lines, err := s.Lines(uri)
	if err != nil {
		return nil, err
	}
	return scan.FoldingRanges(lines), nil
}
