package autocomplete

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/strongdm/mdc/internal/naming"
	"github.com/strongdm/mdc/internal/scan"
	"github.com/strongdm/mdc/internal/schema"
)

var (
	componentTriggerRe = regexp.MustCompile(`^\s*:+[a-zA-Z-]*\s*$`)
	propertyTriggerRe  = regexp.MustCompile(`^\s*[a-zA-Z-]*$`)
	tabStopRe          = regexp.MustCompile(`\$\{\d+:([^}]*)\}`)
	bareTabStopRe      = regexp.MustCompile(`\$\d+`)
)

const slotPlaceholder = "<!-- Slot content -->"

// Options tunes completion. The zero value enables every provider.
type Options struct {
	DisableProperties bool
	// Analyze classifies the cursor line; nil uses scan.Analyze.
	Analyze func(lines []string, line int) scan.Context
}

// Complete produces completion items for req. Component names are offered
// after colons outside YAML and code fences; property names inside a
// component's YAML block.
func Complete(idx *schema.Index, req Request, opts Options) []Item {
	if idx == nil || req.Position.Line < 0 || req.Position.Line >= len(req.Lines) {
		return nil
	}
	analyze := opts.Analyze
	if analyze == nil {
		analyze = scan.Analyze
	}
	ctx := analyze(req.Lines, req.Position.Line)
	text := textBefore(req.Lines[req.Position.Line], req.Position.Character)

	switch req.Trigger {
	case TriggerColon:
		return ComponentItems(idx, ctx, text)
	case TriggerNewline, TriggerSpace:
		if opts.DisableProperties {
			return nil
		}
		return PropertyItems(idx, req.Lines, ctx, text)
	}
	if items := ComponentItems(idx, ctx, text); len(items) > 0 {
		return items
	}
	if opts.DisableProperties {
		return nil
	}
	return PropertyItems(idx, req.Lines, ctx, text)
}

// ComponentItems suggests component blocks for a line consisting of colons
// and an optional partial name.
func ComponentItems(idx *schema.Index, ctx scan.Context, text string) []Item {
	if !componentTriggerRe.MatchString(text) || ctx.InYAML || ctx.InCodeBlock {
		return nil
	}
	catalog := idx.Catalog()
	if len(catalog) == 0 {
		return nil
	}

	colons := strings.Count(text, ":")
	partial := strings.ToLower(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(text), ":")))

	var out []candidate
	for _, comp := range catalog {
		if comp.Name == "" {
			continue
		}
		out = append(out, candidate{
			item: Item{
				Label:         comp.Name,
				Kind:          KindComponent,
				InsertText:    componentInsertText(comp, colons),
				Detail:        comp.Description,
				Documentation: componentDocumentation(idx, comp),
				Command:       CommandFormat,
			},
			uniqueKey: comp.Name,
		})
	}
	return selectAndRank(dedupeCandidates(out), partial)
}

func componentInsertText(comp schema.Component, colons int) string {
	var b strings.Builder
	if colons == 1 {
		b.WriteByte(':')
	}
	b.WriteString(naming.Kebab(comp.Name))
	b.WriteString("\n---\n${1:}\n---")
	if comp.HasSlots() {
		b.WriteString("\n${2:" + slotPlaceholder + "}")
	}
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(":", max(2, colons)))
	b.WriteByte('\n')
	return b.String()
}

func componentDocumentation(idx *schema.Index, comp schema.Component) string {
	if comp.DocumentationMarkdown != "" {
		return comp.DocumentationMarkdown
	}
	return idx.DocsLink(comp)
}

// PropertyItems suggests the props of the innermost component that are not
// yet declared at the cursor's indentation. Under a parent key the first
// path segment's nested object props are offered instead.
func PropertyItems(idx *schema.Index, lines []string, ctx scan.Context, text string) []Item {
	if !propertyTriggerRe.MatchString(text) ||
		!ctx.InsideComponent() || !ctx.InYAML || ctx.InCodeBlock || ctx.InMultilineString {
		return nil
	}
	name, _ := ctx.Component()
	comp, ok := idx.Lookup(name)
	if !ok || comp.Props == nil {
		return nil
	}

	scope := name
	props := comp.Props
	if len(ctx.Path) > 0 {
		parent, ok := findProp(idx, name, comp.Props, ctx.Path[0])
		if !ok {
			return nil
		}
		nested, ok := idx.NestedPropsOf(name, parent)
		if !ok {
			return nil
		}
		props = nested
		scope = name + "." + idx.Names(name, parent.Name).Kebab
	}

	existing := map[string]struct{}{}
	if ctx.HasBoundary {
		existing = scan.ExistingPropertyNames(lines, ctx.Line, ctx.Boundary)
	}
	docs := idx.DocsLink(comp)

	var out []candidate
	for _, prop := range props {
		pair := idx.Names(scope, prop.Name)
		if pair.Kebab == "" {
			continue
		}
		if _, ok := existing[pair.Kebab]; ok {
			continue
		}
		if _, ok := existing[pair.Camel]; ok {
			continue
		}
		details := &LabelDetails{Description: schema.DisplayType(prop.Type)}
		priority := 1
		if prop.Required {
			details.Detail = " (required)"
			priority = 0
		}
		out = append(out, candidate{
			item: Item{
				Label:         pair.Kebab,
				LabelDetails:  details,
				Kind:          KindProperty,
				InsertText:    propertyInsertText(prop.Name, pair.Kebab, idx.ValueKindOf(scope, prop)),
				FilterText:    pair.Kebab + " " + pair.Camel,
				Detail:        prop.Description,
				Documentation: docs,
				Command:       CommandRetrigger,
			},
			priority:  priority,
			uniqueKey: pair.Kebab,
		})
	}
	return selectAndRank(dedupeCandidates(out), "")
}

func findProp(idx *schema.Index, component string, props []schema.Prop, segment string) (schema.Prop, bool) {
	want := naming.Kebab(segment)
	for _, prop := range props {
		if idx.Names(component, prop.Name).Kebab == want {
			return prop, true
		}
	}
	return schema.Prop{}, false
}

func propertyInsertText(rawName, name string, kind schema.ValueKind) string {
	if rawName == "styles" {
		return name + ": |\n  ${0:/** Add CSS */}"
	}
	switch kind {
	case schema.KindBoolean:
		return name + ": ${0:true}"
	case schema.KindNumber:
		return name + ": ${0:}"
	case schema.KindArray:
		return name + `: ["${0:}"]`
	case schema.KindArrayUnquoted:
		return name + ": [${0:}]"
	case schema.KindObject:
		return name + ":\n  ${0:}"
	default:
		return name + `: "${0:}"`
	}
}

// PlainText expands tab stops to their defaults for hosts without snippet
// support.
func PlainText(template string) string {
	return bareTabStopRe.ReplaceAllString(tabStopRe.ReplaceAllString(template, "$1"), "")
}

type candidate struct {
	item      Item
	priority  int
	uniqueKey string
}

func dedupeCandidates(in []candidate) []candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]candidate, 0, len(in))
	for _, c := range in {
		key := c.uniqueKey
		if key == "" {
			key = strings.ToLower(c.item.InsertText)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// selectAndRank orders candidates by priority, then by how well the label
// matches prefix, then by input order, and assigns sort keys.
func selectAndRank(candidates []candidate, prefix string) []Item {
	if len(candidates) == 0 {
		return nil
	}
	type rankedItem struct {
		item Item
		rank int
	}

	ranked := make([]rankedItem, 0, len(candidates))
	for idx, cand := range candidates {
		score := cand.priority * 100
		if prefix != "" {
			lowerLabel := strings.ToLower(cand.item.Label)
			switch {
			case strings.HasPrefix(lowerLabel, prefix):
			case strings.Contains(lowerLabel, prefix):
				score += 5
			default:
				score += 15
			}
		}
		ranked = append(ranked, rankedItem{
			item: cand.item,
			rank: score*10000 + idx,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].rank < ranked[j].rank
	})

	items := make([]Item, 0, len(ranked))
	for i, r := range ranked {
		item := r.item
		item.SortText = sortKey(i, len(ranked))
		items = append(items, item)
	}
	return items
}

// sortKey zero-pads idx to at least three digits, widening for larger
// result sets so the keys still sort lexically.
func sortKey(idx, total int) string {
	if idx < 0 {
		idx = 0
	}
	width := max(3, len(strconv.Itoa(max(total-1, 0))))
	return fmt.Sprintf("%0*d", width, idx)
}

// textBefore returns the line up to character runes.
func textBefore(line string, character int) string {
	runes := []rune(line)
	if character < 0 {
		character = 0
	}
	if character > len(runes) {
		character = len(runes)
	}
	return string(runes[:character])
}
