// Package document holds open MDC documents and memoizes their split lines.
package document

import (
	"path/filepath"
	"strings"
	"sync"
)

// Document is the minimal view of an editor buffer the completion engine needs.
type Document interface {
	URI() string
	Text() string
}

// Text is a Document backed by an in-memory string.
type Text struct {
	ID         string
	Content    string
	LanguageID string
}

// URI returns the document identity.
func (t Text) URI() string { return t.ID }

// Text returns the full buffer.
func (t Text) Text() string { return t.Content }

// IsMarkdown reports whether a document should be tracked by the engine, using
// the URI extension first and the host language id second.
func IsMarkdown(uri, languageID string) bool {
	ext := strings.ToLower(filepath.Ext(uri))
	if ext == ".md" || ext == ".mdc" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(languageID)) {
	case "mdc", "markdown":
		return true
	}
	return false
}

// Store memoizes the split lines of each document by URI until Invalidate is
// called for that URI.
type Store struct {
	mu    sync.RWMutex
	lines map[string][]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{lines: make(map[string][]string)}
}

// Lines returns the document split on '\n'. The slice is shared; callers must
// not modify it.
func (s *Store) Lines(doc Document) []string {
	if doc == nil {
		return nil
	}
	uri := doc.URI()

	s.mu.RLock()
	lines, ok := s.lines[uri]
	s.mu.RUnlock()
	if ok {
		return lines
	}

	lines = strings.Split(doc.Text(), "\n")

	s.mu.Lock()
	if existing, ok := s.lines[uri]; ok {
		lines = existing
	} else {
		s.lines[uri] = lines
	}
	s.mu.Unlock()
	return lines
}

// Invalidate drops the memoized lines for uri.
func (s *Store) Invalidate(uri string) {
	s.mu.Lock()
	delete(s.lines, uri)
	s.mu.Unlock()
}

// Len reports how many documents are memoized.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}
