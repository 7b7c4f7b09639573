// Package schema models the MDC component catalog and derives the facts the
// completion engine needs from it: top-level props, nested object props, value
// kinds and naming pairs.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Component describes one MDC component. It decodes both the
// component-meta catalog shape (`component_meta.meta.props`) and a flat shape
// with `props` and `slots` at the top level.
type Component struct {
	Name                  string `json:"mdc_name"`
	Description           string `json:"description,omitempty"`
	DocumentationMarkdown string `json:"documentation_markdown,omitempty"`
	DocsURL               string `json:"docs_url,omitempty"`
	Props                 []Prop `json:"props,omitempty"`
	Slots                 []Slot `json:"slots,omitempty"`
}

type componentMeta struct {
	Meta *struct {
		Props []Prop `json:"props"`
		Slots []Slot `json:"slots"`
	} `json:"meta"`
}

// UnmarshalJSON accepts either catalog shape. Props under component_meta win
// over flat props when both are present.
func (c *Component) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name                  string         `json:"mdc_name"`
		Description           string         `json:"description"`
		DocumentationMarkdown string         `json:"documentation_markdown"`
		DocsURL               string         `json:"docs_url"`
		Props                 []Prop         `json:"props"`
		Slots                 []Slot         `json:"slots"`
		ComponentMeta         *componentMeta `json:"component_meta"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*c = Component{
		Name:                  wire.Name,
		Description:           wire.Description,
		DocumentationMarkdown: wire.DocumentationMarkdown,
		DocsURL:               wire.DocsURL,
		Props:                 wire.Props,
		Slots:                 wire.Slots,
	}
	if wire.ComponentMeta != nil && wire.ComponentMeta.Meta != nil {
		if wire.ComponentMeta.Meta.Props != nil {
			c.Props = wire.ComponentMeta.Meta.Props
		}
		if wire.ComponentMeta.Meta.Slots != nil {
			c.Slots = wire.ComponentMeta.Meta.Slots
		}
	}
	return nil
}

// HasSlots reports whether the component declares at least one slot.
func (c Component) HasSlots() bool {
	return len(c.Slots) > 0
}

// Slot is a named content slot.
type Slot struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Prop is one declared component property. Type is a free-form type
// expression such as `string[] | undefined`.
type Prop struct {
	Name        string  `json:"name"`
	Type        string  `json:"type,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Description string  `json:"description,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// Schema is a property schema as emitted by vue-component-meta: either a bare
// type name ("string") or an object with a kind, a type and nested entries.
// Entries keep their declaration order.
type Schema struct {
	Kind    string
	Type    string
	Entries []Entry
}

// Entry is one nested schema entry. Raw is decoded lazily since entries may be
// bare strings, sub-schemas or prop records depending on the parent kind.
type Entry struct {
	Key string
	Raw json.RawMessage
}

// UnmarshalJSON decodes a string or object schema.
func (s *Schema) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Schema{}
		return nil
	}
	if data[0] == '"' {
		var typ string
		if err := json.Unmarshal(data, &typ); err != nil {
			return err
		}
		*s = Schema{Type: typ}
		return nil
	}
	if data[0] != '{' {
		return fmt.Errorf("schema: unexpected %q", data[:1])
	}
	var wire struct {
		Kind   string          `json:"kind"`
		Type   string          `json:"type"`
		Schema json.RawMessage `json:"schema"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	entries, err := decodeEntries(wire.Schema)
	if err != nil {
		return fmt.Errorf("schema %q: %w", wire.Type, err)
	}
	*s = Schema{Kind: wire.Kind, Type: wire.Type, Entries: entries}
	return nil
}

// Schema decodes the entry as a sub-schema.
func (e Entry) Schema() (Schema, bool) {
	var s Schema
	if err := json.Unmarshal(e.Raw, &s); err != nil {
		return Schema{}, false
	}
	return s, true
}

// Prop decodes the entry as a prop record named after its key.
func (e Entry) Prop() (Prop, bool) {
	var p Prop
	raw := bytes.TrimSpace(e.Raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Prop{}, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prop{}, false
	}
	if p.Name == "" {
		p.Name = e.Key
	}
	return p, true
}

// decodeEntries reads an object (ordered by key appearance) or an array
// (keyed by index). Scalars carry no entries.
func decodeEntries(data []byte) ([]Entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(items))
		for i, raw := range items {
			entries = append(entries, Entry{Key: strconv.Itoa(i), Raw: raw})
		}
		return entries, nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var entries []Entry
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected key %v", tok)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("entry %q: %w", key, err)
			}
			entries = append(entries, Entry{Key: key, Raw: raw})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return entries, nil
	default:
		return nil, nil
	}
}

// Catalog is the ordered set of known components. Lookups return the first
// component carrying a name.
type Catalog []Component

// Lookup returns the first component named name.
func (c Catalog) Lookup(name string) (Component, bool) {
	if name == "" {
		return Component{}, false
	}
	for _, comp := range c {
		if comp.Name == name {
			return comp, true
		}
	}
	return Component{}, false
}

// Names lists component names in catalog order without duplicates.
func (c Catalog) Names() []string {
	seen := make(map[string]struct{}, len(c))
	out := make([]string, 0, len(c))
	for _, comp := range c {
		if comp.Name == "" {
			continue
		}
		if _, ok := seen[comp.Name]; ok {
			continue
		}
		seen[comp.Name] = struct{}{}
		out = append(out, comp.Name)
	}
	return out
}

// Decode parses a JSON catalog document: a bare array of components or an
// object wrapping them under "components".
func Decode(data []byte) (Catalog, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var wrapped struct {
			Components Catalog `json:"components"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return wrapped.Components, nil
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return cat, nil
}
