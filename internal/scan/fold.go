package scan

import (
	"regexp"
	"sort"
	"strings"
)

var (
	foldStartRe = regexp.MustCompile(`^\s*(:{2,})([\w-]+)`)
	foldEndRe   = regexp.MustCompile(`^\s*(:{2,})$`)
)

// Range is a foldable region spanning an opening line through its closer.
type Range struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Name  string `json:"name,omitempty"`
}

// FoldingRanges returns one range per matched component block, ordered by start
// line. Openers may carry inline attributes (`::card{…}`); lines inside code
// fences are ignored.
func FoldingRanges(lines []string) []Range {
	type open struct {
		start  int
		name   string
		colons int
	}
	var (
		ranges []Range
		stack  []open
		inCode bool
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if codeFenceRe.MatchString(line) {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		if m := foldStartRe.FindStringSubmatch(line); m != nil {
			stack = append(stack, open{start: i, name: m[2], colons: len(m[1])})
			continue
		}
		m := foldEndRe.FindStringSubmatch(line)
		if m == nil || len(stack) == 0 {
			continue
		}
		top := stack[len(stack)-1]
		if top.colons != len(m[1]) {
			continue
		}
		stack = stack[:len(stack)-1]
		ranges = append(ranges, Range{Start: top.start, End: i, Name: top.name})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})
	return ranges
}
