// Package assets provides the embedded default recipe and the static
// configuration files it deploys.
package assets

import (
	"embed"
	"io/fs"
)

// Recipe contains the default provisioning recipe in YAML form.
//
//go:embed recipe.yaml
var Recipe []byte

//go:embed files
var files embed.FS

// Files returns the embedded static files rooted at the files/ directory.
// Entries are addressed by base name, e.g. "ntp.conf".
func Files() fs.FS {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		// files/ is embedded at compile time
		panic(err)
	}
	return sub
}
