// Package assets exposes the bundled Boop scripts and the @boop/ module library.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed scripts
var embedded embed.FS

// Scripts returns a sub-filesystem rooted at the scripts/ directory. Bundled
// scripts live at its top level, @boop/ library modules under lib/.
func Scripts() fs.FS {
	sub, err := fs.Sub(embedded, "scripts")
	if err != nil {
		panic("assets: sub scripts: " + err.Error())
	}
	return sub
}
