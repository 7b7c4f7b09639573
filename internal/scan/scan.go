// Package scan classifies the syntactic region of a cursor inside an MDC
// document: open component blocks, the YAML properties block, code fences,
// multi-line YAML strings and the YAML path at the cursor's indentation.
//
// Scanning is line-oriented and heuristic. Malformed nesting never fails; an
// unmatched opener simply stays on the stack for the rest of the document.
package scan

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/strongdm/mdc/internal/naming"
)

var (
	componentStartRe = regexp.MustCompile(`^\s*(:{2,})([\w-]+)\s*$`)
	componentEndRe   = regexp.MustCompile(`^\s*(:{2,})\s*$`)
	codeFenceRe      = regexp.MustCompile("^\\s*(?:`{3,}|~{3,})")
	multilineRe      = regexp.MustCompile(`^([\w-]+):\s*[|>]`)
	propNameRe       = regexp.MustCompile(`^([\w-]+):`)
)

// Frame is one open component block.
type Frame struct {
	Name       string `json:"name"`
	OpenLine   int    `json:"openLine"`
	ColonDepth int    `json:"colonDepth"`
}

// Boundary holds the line indices of the two "---" delimiters around a YAML
// properties block. End is len(lines) when the block is not closed yet.
type Boundary struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Context is the classification of a single cursor line.
type Context struct {
	Line              int
	Stack             []Frame
	InYAML            bool
	InCodeBlock       bool
	InMultilineString bool
	Boundary          Boundary
	HasBoundary       bool
	Path              []string
}

// InsideComponent reports whether at least one component block is open.
func (c Context) InsideComponent() bool {
	return len(c.Stack) > 0
}

// Component returns the innermost open component name.
func (c Context) Component() (string, bool) {
	if len(c.Stack) == 0 {
		return "", false
	}
	return c.Stack[len(c.Stack)-1].Name, true
}

type forwardState struct {
	stack  []Frame
	inYAML bool
	inCode bool
}

// forward walks lines [0, lineNumber) once and tracks component, YAML and code
// fence state together.
func forward(lines []string, lineNumber int) forwardState {
	var st forwardState
	end := clampLine(lines, lineNumber)
	for i := 0; i < end; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if codeFenceRe.MatchString(line) {
			st.inCode = !st.inCode
		}
		if line == "---" {
			st.inYAML = !st.inYAML
			continue
		}
		if m := componentStartRe.FindStringSubmatch(line); m != nil {
			st.stack = append(st.stack, Frame{Name: m[2], OpenLine: i, ColonDepth: len(m[1])})
			continue
		}
		if m := componentEndRe.FindStringSubmatch(line); m != nil && len(st.stack) > 0 {
			if top := st.stack[len(st.stack)-1]; top.ColonDepth == len(m[1]) {
				st.stack = st.stack[:len(st.stack)-1]
			}
		}
	}
	return st
}

// ComponentStack returns the open component blocks before lineNumber, outermost first.
func ComponentStack(lines []string, lineNumber int) []Frame {
	return forward(lines, lineNumber).stack
}

// InsideComponent reports whether lineNumber sits inside any component block.
func InsideComponent(lines []string, lineNumber int) bool {
	return len(ComponentStack(lines, lineNumber)) > 0
}

// CurrentComponentName returns the innermost component open at lineNumber.
func CurrentComponentName(lines []string, lineNumber int) (string, bool) {
	stack := ComponentStack(lines, lineNumber)
	if len(stack) == 0 {
		return "", false
	}
	return stack[len(stack)-1].Name, true
}

// InsideYAML reports whether an odd number of "---" delimiters precede lineNumber.
func InsideYAML(lines []string, lineNumber int) bool {
	return forward(lines, lineNumber).inYAML
}

// InsideCodeBlock reports whether an unclosed ``` or ~~~ fence precedes lineNumber.
func InsideCodeBlock(lines []string, lineNumber int) bool {
	return forward(lines, lineNumber).inCode
}

// YAMLBoundaries finds the nearest "---" before lineNumber and the nearest one
// at or after it. ok is false when no delimiter precedes the line.
func YAMLBoundaries(lines []string, lineNumber int) (Boundary, bool) {
	if lineNumber < 0 {
		return Boundary{}, false
	}
	start := -1
	for i := clampLine(lines, lineNumber) - 1; i >= 0; i-- {
		if isYAMLDelimiter(lines[i]) {
			start = i
			break
		}
	}
	if start == -1 {
		return Boundary{}, false
	}
	end := len(lines)
	for i := lineNumber; i < len(lines); i++ {
		if isYAMLDelimiter(lines[i]) {
			end = i
			break
		}
	}
	return Boundary{Start: start, End: end}, true
}

// InsideMultilineString reports whether lineNumber continues a `key: |` or
// `key: >` block scalar. Walking back stops at the first "---" (false) or the
// first block scalar header; the cursor is inside when it is indented deeper
// than that header.
func InsideMultilineString(lines []string, lineNumber int) bool {
	if lineNumber < 0 || lineNumber >= len(lines) {
		return false
	}
	current := indentation(lines[lineNumber])
	for i := lineNumber - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "---" {
			return false
		}
		if multilineRe.MatchString(trimmed) {
			return current > indentation(lines[i])
		}
	}
	return false
}

// YAMLPath returns the chain of parent keys (outermost first) enclosing the
// cursor's indentation within the block b.
func YAMLPath(lines []string, lineNumber int, b Boundary) []string {
	if lineNumber <= 0 || lineNumber >= len(lines) {
		return nil
	}
	var path []string
	last := indentation(lines[lineNumber])
	for i := lineNumber - 1; i > b.Start && last > 0; i-- {
		if i >= b.End {
			continue
		}
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" || !strings.HasSuffix(trimmed, ":") {
			continue
		}
		indent := indentation(line)
		if indent >= last {
			continue
		}
		if m := propNameRe.FindStringSubmatch(trimmed); m != nil {
			path = append([]string{m[1]}, path...)
			last = indent
		}
	}
	return path
}

// ExistingPropertyNames collects the keys declared at the cursor's indentation
// inside b, in both kebab-case and camelCase spellings.
func ExistingPropertyNames(lines []string, lineNumber int, b Boundary) map[string]struct{} {
	names := make(map[string]struct{})
	if lineNumber < 0 || lineNumber >= len(lines) {
		return names
	}
	current := indentation(lines[lineNumber])
	end := b.End
	if end > len(lines) {
		end = len(lines)
	}
	for i := b.Start + 1; i < end; i++ {
		if i < 0 {
			continue
		}
		line := lines[i]
		if indentation(line) != current {
			continue
		}
		m := propNameRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		pair := naming.Of(m[1])
		names[pair.Kebab] = struct{}{}
		names[pair.Camel] = struct{}{}
	}
	return names
}

// Analyze classifies lineNumber using one forward pass plus the bounded
// backward scans for boundaries, path and block scalars.
func Analyze(lines []string, lineNumber int) Context {
	return analyze(lines, lineNumber, YAMLBoundaries)
}

func analyze(lines []string, lineNumber int, boundaries func([]string, int) (Boundary, bool)) Context {
	st := forward(lines, lineNumber)
	ctx := Context{
		Line:        lineNumber,
		Stack:       st.stack,
		InYAML:      st.inYAML,
		InCodeBlock: st.inCode,
	}
	if !ctx.InYAML {
		return ctx
	}
	ctx.InMultilineString = InsideMultilineString(lines, lineNumber)
	if b, ok := boundaries(lines, lineNumber); ok {
		ctx.Boundary = b
		ctx.HasBoundary = true
		ctx.Path = YAMLPath(lines, lineNumber, b)
	}
	return ctx
}

func isYAMLDelimiter(line string) bool {
	return strings.TrimSpace(line) == "---"
}

func indentation(line string) int {
	return len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
}

func clampLine(lines []string, lineNumber int) int {
	if lineNumber < 0 {
		return 0
	}
	if lineNumber > len(lines) {
		return len(lines)
	}
	return lineNumber
}
