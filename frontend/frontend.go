// Package frontend provides the embedded entry UI.
package frontend

import (
	"embed"
	"io/fs"
)

// Files contains the embedded web frontend.
//
//go:embed dist/*
var Files embed.FS

// Root returns the content of dist/ as the root of the site.
func Root() fs.FS {
	sub, err := fs.Sub(Files, "dist")
	if err != nil {
		panic(err)
	}
	return sub
}
