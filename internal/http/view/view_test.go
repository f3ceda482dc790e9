package view

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDeniedPage_Escapes(t *testing.T) {
	page, err := RenderDeniedPage(DeniedPageData{Message: "<script>x</script>"})
	require.NoError(t, err)
	assert.Contains(t, page, "&lt;script&gt;")
	assert.NotContains(t, page, "<script>x")
}

func TestStaticFS(t *testing.T) {
	root := StaticFS()
	for _, name := range []string{"index.html", "success.html", "app.js", "style.css"} {
		_, err := fs.Stat(root, name)
		assert.NoError(t, err, name)
	}

	for _, name := range []string{"admin.html", "./admin.html", "x/../admin.html", "ADMIN.HTML"} {
		_, err := root.Open(name)
		assert.ErrorIs(t, err, fs.ErrNotExist, name)
	}

	page := string(AdminPage())
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "/api/clicks")
}

func TestIsAdminPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/admin.html", true},
		{"//admin.html", true},
		{"/./admin.html", true},
		{"/x/../admin.html", true},
		{"/Admin.HTML", true},
		{"/admin", true},
		{"/admin/login", true},
		{`\admin.html`, true},
		{"/", false},
		{"/index.html", false},
		{"/app.js", false},
		{"/success.html", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAdminPath(tt.path), tt.path)
	}
}
