package view

import (
	"bytes"
	"html/template"
)

// DeniedPageData provides the dynamic fields of the admin rejection page.
type DeniedPageData struct {
	Message   string
	Challenge bool
}

var deniedPageTmpl = template.Must(template.New("denied_page").Parse(`<!DOCTYPE html>
<html lang="vi">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>401</title>
	<style>
		:root {
			--bg: #0f172a;
			--card: rgba(255, 255, 255, 0.06);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e2e8f0;
			--muted: #94a3b8;
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: var(--bg);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 16px;
			padding: 28px 32px;
			width: min(440px, 92vw);
			text-align: center;
		}
		p { color: var(--muted); }
	</style>
</head>
<body>
	<div class="card">
		<h1>{{.Message}}</h1>
		{{if .Challenge}}<p>Đăng nhập bằng tài khoản quản trị để tiếp tục.</p>{{else}}<p>Cần mã truy cập quản trị hợp lệ.</p>{{end}}
	</div>
</body>
</html>
`))

// RenderDeniedPage expands the rejection page template.
func RenderDeniedPage(data DeniedPageData) (string, error) {
	var buf bytes.Buffer
	if err := deniedPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
