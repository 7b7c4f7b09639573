package autocomplete

import (
	"strings"
	"testing"

	"github.com/strongdm/mdc/internal/schema"
)

const testCatalog = `[
  {
    "mdc_name": "alert",
    "description": "Callout box",
    "docs_url": "https://example.com/alert",
    "component_meta": {"meta": {
      "props": [
        {"name": "actions", "type": "object", "schema": {
          "kind": "enum", "type": "object | undefined",
          "schema": ["undefined", {"kind": "object", "type": "AlertActions", "schema": {
            "label": {"name": "label", "type": "string", "required": true}
          }}]
        }},
        {"name": "icon", "type": "string", "required": true},
        {"name": "showClose", "type": "boolean | undefined"},
        {"name": "tags", "type": "string[] | undefined"},
        {"name": "sizes", "type": "number[]"},
        {"name": "delay", "type": "number | null"},
        {"name": "styles", "type": "string"}
      ],
      "slots": [{"name": "default"}]
    }}
  },
  {"mdc_name": "badge", "documentation_markdown": "**Badge** docs", "props": []},
  {"mdc_name": "alert", "description": "duplicate"}
]`

func newIndex(t *testing.T) *schema.Index {
	t.Helper()
	cat, err := schema.Decode([]byte(testCatalog))
	if err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	return schema.NewIndex(cat)
}

func complete(t *testing.T, idx *schema.Index, src string, trigger Trigger, opts Options) []Item {
	t.Helper()
	lines, pos := extractCaret(t, src)
	return Complete(idx, Request{Lines: lines, Position: pos, Trigger: trigger}, opts)
}

func TestCompletePropertiesRequiredFirst(t *testing.T) {
	t.Parallel()

	src := "::alert\n---\n<caret>\n---\n::"
	items := complete(t, newIndex(t), src, TriggerNewline, Options{})

	want := []string{"icon", "actions", "show-close", "tags", "sizes", "delay", "styles"}
	if got := labels(items); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	for i, item := range items {
		if item.SortText != sortKey(i, len(items)) {
			t.Fatalf("item %q sort text %q, want %q", item.Label, item.SortText, sortKey(i, len(items)))
		}
		if item.Kind != KindProperty || item.Command != CommandRetrigger {
			t.Fatalf("unexpected item %+v", item)
		}
	}

	byLabel := indexByLabel(items)
	inserts := map[string]string{
		"icon":       `icon: "${0:}"`,
		"actions":    "actions:\n  ${0:}",
		"show-close": "show-close: ${0:true}",
		"tags":       `tags: ["${0:}"]`,
		"sizes":      "sizes: [${0:}]",
		"delay":      "delay: ${0:}",
		"styles":     "styles: |\n  ${0:/** Add CSS */}",
	}
	for label, insert := range inserts {
		if got := byLabel[label].InsertText; got != insert {
			t.Fatalf("%s insert = %q, want %q", label, got, insert)
		}
	}

	icon := byLabel["icon"]
	if icon.LabelDetails == nil || icon.LabelDetails.Description != "string" || icon.LabelDetails.Detail != " (required)" {
		t.Fatalf("unexpected icon label details %+v", icon.LabelDetails)
	}
	if got := byLabel["show-close"].FilterText; got != "show-close showClose" {
		t.Fatalf("filter text = %q", got)
	}
	if got := byLabel["delay"].LabelDetails.Description; got != "number" {
		t.Fatalf("delay description = %q", got)
	}
	if got := icon.Documentation; got != "[View the 'alert' docs ↗](https://example.com/alert)" {
		t.Fatalf("documentation = %q", got)
	}
}

func TestCompletePropertiesNestedPath(t *testing.T) {
	t.Parallel()

	src := "::alert\n---\nicon: info\nactions:\n  <caret>\n---\n::"
	items := complete(t, newIndex(t), src, TriggerAny, Options{})
	if got := labels(items); len(got) != 1 || got[0] != "label" {
		t.Fatalf("expected only nested label, got %v", got)
	}
	if items[0].InsertText != `label: "${0:}"` {
		t.Fatalf("nested insert = %q", items[0].InsertText)
	}
}

func TestCompletePropertiesSkipExisting(t *testing.T) {
	t.Parallel()

	src := "::alert\n---\nicon: info\nshowClose: true\ntags: []\n<caret>\n---\n::"
	items := complete(t, newIndex(t), src, TriggerAny, Options{})
	for _, label := range []string{"icon", "show-close", "tags"} {
		if containsLabel(items, label) {
			t.Fatalf("expected %s to be excluded, got %v", label, labels(items))
		}
	}
	if len(items) == 0 || items[0].Label != "actions" {
		t.Fatalf("expected actions first once icon is present, got %v", labels(items))
	}
}

func TestCompleteSuppressedContexts(t *testing.T) {
	t.Parallel()

	idx := newIndex(t)
	cases := map[string]string{
		"outside component":  "---\n<caret>\n---",
		"outside yaml":       "::alert\n<caret>\n::",
		"code fence":         "::alert\n---\n```\n<caret>\n---\n::",
		"multiline string":   "::alert\n---\nstyles: |\n  <caret>\n---\n::",
		"unknown component":  "::missing\n---\n<caret>\n---\n::",
		"not a bareword":     "::alert\n---\nicon: <caret>\n---\n::",
		"fenced component":   "```\n::<caret>",
		"component in yaml":  "::alert\n---\n::<caret>\n---\n::",
		"prose before colon": "see ::<caret>",
	}
	for name, src := range cases {
		if items := complete(t, idx, src, TriggerAny, Options{}); len(items) != 0 {
			t.Fatalf("%s: expected no items, got %v", name, labels(items))
		}
	}
}

func TestCompleteComponents(t *testing.T) {
	t.Parallel()

	idx := newIndex(t)

	items := complete(t, idx, ":<caret>", TriggerColon, Options{})
	if got := labels(items); strings.Join(got, ",") != "alert,badge" {
		t.Fatalf("labels = %v", got)
	}
	alert := items[0]
	wantInsert := ":alert\n---\n${1:}\n---\n${2:<!-- Slot content -->}\n::\n"
	if alert.InsertText != wantInsert {
		t.Fatalf("alert insert = %q, want %q", alert.InsertText, wantInsert)
	}
	if alert.Detail != "Callout box" || alert.Kind != KindComponent || alert.Command != CommandFormat {
		t.Fatalf("unexpected alert item %+v", alert)
	}
	if alert.Documentation != "[View the 'alert' docs ↗](https://example.com/alert)" {
		t.Fatalf("alert docs = %q", alert.Documentation)
	}
	if items[1].Documentation != "**Badge** docs" {
		t.Fatalf("badge docs = %q", items[1].Documentation)
	}

	items = complete(t, idx, "  ::::ba<caret>", TriggerAny, Options{})
	if len(items) != 2 || items[0].Label != "badge" {
		t.Fatalf("expected badge ranked first, got %v", labels(items))
	}
	if items[0].InsertText != "badge\n---\n${1:}\n---\n::::\n" {
		t.Fatalf("badge insert = %q", items[0].InsertText)
	}
	if items[0].SortText != "000" || items[1].SortText != "001" {
		t.Fatalf("unexpected sort text %q %q", items[0].SortText, items[1].SortText)
	}

	empty := schema.NewIndex(nil)
	if items := complete(t, empty, "::<caret>", TriggerColon, Options{}); len(items) != 0 {
		t.Fatalf("expected no items for empty catalog, got %v", labels(items))
	}
}

func TestCompleteTriggerDispatch(t *testing.T) {
	t.Parallel()

	idx := newIndex(t)
	src := "::alert\n---\n<caret>\n---\n::"
	if items := complete(t, idx, src, TriggerColon, Options{}); len(items) != 0 {
		t.Fatalf("colon trigger must not offer properties, got %v", labels(items))
	}
	if items := complete(t, idx, src, TriggerSpace, Options{DisableProperties: true}); len(items) != 0 {
		t.Fatalf("disabled property completion still produced %v", labels(items))
	}
	if items := complete(t, idx, "::<caret>", TriggerNewline, Options{}); len(items) != 0 {
		t.Fatalf("newline trigger must not offer components, got %v", labels(items))
	}
	if items := Complete(idx, Request{Lines: []string{"::"}, Position: Position{Line: 4}}, Options{}); items != nil {
		t.Fatalf("expected nil for out of range line, got %v", labels(items))
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`icon: "${0:}"`:                       `icon: ""`,
		"show: ${0:true}":                     "show: true",
		"styles: |\n  ${0:/** Add CSS */}":    "styles: |\n  /** Add CSS */",
		"x\n---\n${1:}\n---\n${2:slot}\n::\n": "x\n---\n\n---\nslot\n::\n",
		"a $0 b":                              "a  b",
	}
	for in, want := range tests {
		if got := PlainText(in); got != want {
			t.Fatalf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
}

func extractCaret(t *testing.T, src string) ([]string, Position) {
	t.Helper()
	const marker = "<caret>"
	idx := strings.Index(src, marker)
	if idx == -1 {
		t.Fatalf("caret marker not found in %q", src)
	}
	before := src[:idx]
	after := src[idx+len(marker):]
	line := strings.Count(before, "\n")
	col := len([]rune(before))
	if lastNL := strings.LastIndex(before, "\n"); lastNL != -1 {
		col = len([]rune(before[lastNL+1:]))
	}
	return strings.Split(before+after, "\n"), Position{Line: line, Character: col}
}

func containsLabel(items []Item, label string) bool {
	for _, item := range items {
		if item.Label == label {
			return true
		}
	}
	return false
}

func labels(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

func indexByLabel(items []Item) map[string]Item {
	out := make(map[string]Item, len(items))
	for _, item := range items {
		out[item.Label] = item
	}
	return out
}

func TestSortKeyOrdersLargeResultSets(t *testing.T) {
	t.Parallel()

	if got := sortKey(7, 12); got != "007" {
		t.Fatalf("sortKey(7, 12) = %q", got)
	}
	const total = 1200
	prev := sortKey(0, total)
	for i := 1; i < total; i++ {
		key := sortKey(i, total)
		if key <= prev {
			t.Fatalf("sortKey(%d) = %q does not sort after %q", i, key, prev)
		}
		prev = key
	}
}
