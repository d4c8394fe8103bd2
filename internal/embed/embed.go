package embed

import (
	"embed"
	"io/fs"
)

// publicFS holds the web UI
//
//go:embed all:public
var publicFS embed.FS

// GetPublicFS returns the embedded UI rooted at public/
func GetPublicFS() (fs.FS, error) {
	return fs.Sub(publicFS, "public")
}

// HasEmbeddedFiles checks if public files are embedded
func HasEmbeddedFiles() bool {
	entries, err := publicFS.ReadDir("public")
	return err == nil && len(entries) > 0
}
