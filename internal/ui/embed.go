package ui

import (
	"embed"
	"io/fs"
)

//go:embed dist
var dist embed.FS

// Dir returns the embedded playground assets rooted at dist/.
func Dir() fs.FS {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}
	return sub
}
