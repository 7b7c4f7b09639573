// Package naming converts MDC property names between the kebab-case form
// written in documents and the camelCase form declared by components.
//
// Words break at separators ('-', '_', whitespace), before an uppercase rune
// that follows a lowercase rune or digit, and before the last rune of an
// uppercase run that is followed by a lowercase rune ("URLPath" is "url" and
// "path"). Digits never start a word, so "cols2xl" stays one word and
// "h1Class" becomes "h1" and "class".
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pair holds both accepted spellings of a property name.
type Pair struct {
	Kebab string
	Camel string
}

// Kebab returns the kebab-case spelling of name.
func Kebab(name string) string {
	return strings.Join(words(name), "-")
}

// Camel returns the lowerCamelCase spelling of name. Kebab(Camel(name)) ==
// Kebab(name) whenever no word of name starts with a digit.
func Camel(name string) string {
	ws := words(name)
	if len(ws) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(ws[0])
	for _, w := range ws[1:] {
		b.WriteString(upperFirst(w))
	}
	return b.String()
}

// Of returns both spellings of name.
func Of(name string) Pair {
	return Pair{Kebab: Kebab(name), Camel: Camel(name)}
}

// words splits name into lowercase words.
func words(name string) []string {
	runes := []rune(strings.TrimSpace(name))
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

func isSeparator(r rune) bool {
	return r == '-' || r == '_' || unicode.IsSpace(r)
}

func upperFirst(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}
