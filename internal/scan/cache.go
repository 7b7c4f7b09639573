package scan

import "sync"

// BoundaryCache memoizes YAMLBoundaries per document and line. Entries for a
// document must be dropped whenever its text changes.
type BoundaryCache struct {
	mu   sync.RWMutex
	docs map[string]map[int]Boundary
}

// NewBoundaryCache returns an empty cache.
func NewBoundaryCache() *BoundaryCache {
	return &BoundaryCache{docs: make(map[string]map[int]Boundary)}
}

// Boundaries returns the cached boundary for (uri, lineNumber), computing and
// storing it on a miss. Absent boundaries are not cached.
func (c *BoundaryCache) Boundaries(uri string, lines []string, lineNumber int) (Boundary, bool) {
	c.mu.RLock()
	b, ok := c.docs[uri][lineNumber]
	c.mu.RUnlock()
	if ok {
		return b, true
	}

	b, ok = YAMLBoundaries(lines, lineNumber)
	if !ok {
		return Boundary{}, false
	}

	c.mu.Lock()
	perDoc := c.docs[uri]
	if perDoc == nil {
		perDoc = make(map[int]Boundary)
		c.docs[uri] = perDoc
	}
	perDoc[lineNumber] = b
	c.mu.Unlock()
	return b, true
}

// Invalidate drops every cached boundary for uri.
func (c *BoundaryCache) Invalidate(uri string) {
	c.mu.Lock()
	delete(c.docs, uri)
	c.mu.Unlock()
}

// Analyze is the cached counterpart of the package-level Analyze.
func (c *BoundaryCache) Analyze(uri string, lines []string, lineNumber int) Context {
	return analyze(lines, lineNumber, func(lines []string, n int) (Boundary, bool) {
		return c.Boundaries(uri, lines, n)
	})
}
