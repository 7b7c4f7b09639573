package schema

import "strings"

// ValueKind classifies a prop's declared type for value templates.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBoolean
	KindArray
	KindArrayUnquoted
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindArrayUnquoted:
		return "array-unquoted"
	case KindObject:
		return "object"
	default:
		return "string"
	}
}

// MarshalText renders the kind name.
func (k ValueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type kindRule struct {
	kind  ValueKind
	match func(Prop) bool
}

// kindRules are evaluated in order; the first match wins. Container checks
// precede scalar keywords because type strings such as
// "Record<string, string>" mention several keywords.
var kindRules = []kindRule{
	{KindObject, func(p Prop) bool {
		return containsAny(p.Type, "Record<", "Array<string,") ||
			strings.Contains(strings.ToLower(p.Type), "object")
	}},
	{KindArray, func(p Prop) bool {
		return containsAny(p.Type, "string[]", "Array<string")
	}},
	{KindArrayUnquoted, func(p Prop) bool {
		return containsAny(p.Type, "number[]", "boolean[]", "Array<number", "Array<boolean")
	}},
	{KindBoolean, func(p Prop) bool { return strings.Contains(p.Type, "boolean") }},
	{KindNumber, func(p Prop) bool { return strings.Contains(p.Type, "number") }},
	{KindString, func(p Prop) bool { return strings.Contains(p.Type, "string") }},
	{KindObject, func(p Prop) bool {
		_, ok := firstObjectEntry(p)
		return ok
	}},
}

// InferKind applies the kind rules to p. Unmatched types are strings.
func InferKind(p Prop) ValueKind {
	for _, rule := range kindRules {
		if rule.match(p) {
			return rule.kind
		}
	}
	return KindString
}

// firstObjectEntry returns the first nested schema entry of kind "object".
func firstObjectEntry(p Prop) (Schema, bool) {
	if p.Schema == nil {
		return Schema{}, false
	}
	for _, entry := range p.Schema.Entries {
		s, ok := entry.Schema()
		if ok && s.Kind == "object" {
			return s, true
		}
	}
	return Schema{}, false
}

// NestedProps resolves the props of the first object-kind entry in p's
// schema. Deeper levels are not followed.
func NestedProps(p Prop) ([]Prop, bool) {
	obj, ok := firstObjectEntry(p)
	if !ok {
		return nil, false
	}
	props := make([]Prop, 0, len(obj.Entries))
	for _, entry := range obj.Entries {
		if prop, ok := entry.Prop(); ok {
			props = append(props, prop)
		}
	}
	return props, true
}

// DisplayType strips optional-union noise from a type expression.
func DisplayType(typ string) string {
	typ = strings.Replace(typ, "| undefined", "", 1)
	typ = strings.Replace(typ, "| null", "", 1)
	return strings.TrimSpace(typ)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
