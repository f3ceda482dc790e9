package view

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed static
var staticFiles embed.FS

const adminPageName = "admin.html"

// StaticFS exposes the public pages and scripts rooted at static/. The dashboard is not part of it.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return publicFS{sub}
}

// publicFS hides the dashboard markup from anything that walks the static tree.
type publicFS struct {
	fs.FS
}

func (p publicFS) Open(name string) (fs.File, error) {
	if IsAdminPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return p.FS.Open(name)
}

// IsAdminPath reports whether a request or file path resolves to the dashboard or anything under /admin.
func IsAdminPath(p string) bool {
	clean := strings.ToLower(path.Clean("/" + strings.ReplaceAll(p, `\`, "/")))
	return clean == "/"+adminPageName || strings.HasPrefix(clean, "/admin")
}

// AdminPage returns the dashboard markup. It is served only behind the admin gate.
func AdminPage() []byte {
	page, err := staticFiles.ReadFile("static/" + adminPageName)
	if err != nil {
		panic(err)
	}
	return page
}
