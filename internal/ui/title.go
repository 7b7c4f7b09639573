package ui

import "strings"

// ComposeTitle builds the playground <title> from the catalog source. An
// empty source yields the bare product name.
func ComposeTitle(source string) string {
	base := "mdc playground"
	if source = strings.TrimSpace(source); source != "" {
		base += " | " + source
	}
	return base
}
