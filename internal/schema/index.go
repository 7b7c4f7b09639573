package schema

import (
	"fmt"
	"sync"

	"github.com/strongdm/mdc/internal/naming"
)

// propKey scopes a memoized fact to one prop. Scope is the component name for
// top-level props and "component.parent" for nested ones, so a nested prop
// never shares an entry with a top-level prop of the same name.
type propKey struct {
	scope string
	prop  string
}

type nestedResult struct {
	props []Prop
	ok    bool
}

// Index answers schema questions against one catalog and memoizes every
// derived fact until the catalog is replaced or the caches are cleared.
type Index struct {
	mu      sync.RWMutex
	catalog Catalog
	names   map[propKey]naming.Pair
	nested  map[propKey]nestedResult
	kinds   map[propKey]ValueKind
	docs    map[string]string
}

// NewIndex returns an index over cat.
func NewIndex(cat Catalog) *Index {
	idx := &Index{}
	idx.Reset(cat)
	return idx
}

// Reset swaps in a new catalog and drops every derived fact.
func (x *Index) Reset(cat Catalog) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.catalog = cat
	x.clearLocked()
}

// Clear drops derived facts but keeps the catalog.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.clearLocked()
}

func (x *Index) clearLocked() {
	x.names = make(map[propKey]naming.Pair)
	x.nested = make(map[propKey]nestedResult)
	x.kinds = make(map[propKey]ValueKind)
	x.docs = make(map[string]string)
}

// Catalog returns the current catalog.
func (x *Index) Catalog() Catalog {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.catalog
}

// Lookup returns the named component.
func (x *Index) Lookup(name string) (Component, bool) {
	return x.Catalog().Lookup(name)
}

// PropsOf returns the top-level props of the named component. ok is false when
// the component is unknown.
func (x *Index) PropsOf(name string) ([]Prop, bool) {
	comp, ok := x.Lookup(name)
	if !ok {
		return nil, false
	}
	return comp.Props, true
}

// NestedPropsOf resolves the props nested under prop within scope.
func (x *Index) NestedPropsOf(scope string, prop Prop) ([]Prop, bool) {
	key := propKey{scope: scope, prop: prop.Name}
	x.mu.RLock()
	res, hit := x.nested[key]
	x.mu.RUnlock()
	if hit {
		return res.props, res.ok
	}
	props, ok := NestedProps(prop)
	x.mu.Lock()
	x.nested[key] = nestedResult{props: props, ok: ok}
	x.mu.Unlock()
	return props, ok
}

// ValueKindOf infers the value kind of prop within scope.
func (x *Index) ValueKindOf(scope string, prop Prop) ValueKind {
	key := propKey{scope: scope, prop: prop.Name}
	x.mu.RLock()
	kind, hit := x.kinds[key]
	x.mu.RUnlock()
	if hit {
		return kind
	}
	kind = InferKind(prop)
	x.mu.Lock()
	x.kinds[key] = kind
	x.mu.Unlock()
	return kind
}

// Names returns the kebab/camel spelling pair of prop within scope.
func (x *Index) Names(scope, prop string) naming.Pair {
	key := propKey{scope: scope, prop: prop}
	x.mu.RLock()
	pair, hit := x.names[key]
	x.mu.RUnlock()
	if hit {
		return pair
	}
	pair = naming.Of(prop)
	x.mu.Lock()
	x.names[key] = pair
	x.mu.Unlock()
	return pair
}

// DocsLink renders the markdown docs link for comp, or "" without a docs URL.
func (x *Index) DocsLink(comp Component) string {
	if comp.Name == "" {
		return ""
	}
	x.mu.RLock()
	link, hit := x.docs[comp.Name]
	x.mu.RUnlock()
	if hit {
		return link
	}
	if comp.DocsURL != "" {
		link = fmt.Sprintf("[View the '%s' docs ↗](%s)", comp.Name, comp.DocsURL)
	}
	x.mu.Lock()
	x.docs[comp.Name] = link
	x.mu.Unlock()
	return link
}

// Stats reports how many facts are memoized, for diagnostics.
func (x *Index) Stats() map[string]int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return map[string]int{
		"components": len(x.catalog),
		"names":      len(x.names),
		"nested":     len(x.nested),
		"kinds":      len(x.kinds),
		"docs":       len(x.docs),
	}
}
