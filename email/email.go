// Package email renders newsletter HTML email bodies as templ components.
package email

import (
	"bytes"
	"context"
	"html"
	"io"

	"github.com/a-h/templ"
)

// Message is the view model for one outgoing newsletter email. Content is
// trusted HTML authored or generated upstream; everything else is escaped.
type Message struct {
	SiteName       string
	SiteURL        string
	Title          string
	Excerpt        string
	Content        string
	Category       string
	OpenPixelURL   string
	UnsubscribeURL string
}

// Body returns a templ.Component that renders the full email HTML.
func Body(m Message) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		render(&buf, m)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Render writes the email HTML to a string for handing to the SMTP dialer.
func Render(m Message) (string, error) {
	var buf bytes.Buffer
	if err := Body(m).Render(context.Background(), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func render(buf *bytes.Buffer, m Message) {
	buf.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
	buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0">`)
	buf.WriteString(`<title>` + html.EscapeString(m.Title) + `</title></head>`)
	buf.WriteString(`<body style="margin:0;padding:0;background:#f4f4f2;font-family:Georgia,serif;color:#2d2d2d;">`)
	buf.WriteString(`<div style="max-width:600px;margin:0 auto;padding:24px;">`)

	// Header
	buf.WriteString(`<div style="text-align:center;padding:16px 0;border-bottom:2px solid #7a9e87;">`)
	buf.WriteString(`<a href="` + html.EscapeString(m.SiteURL) + `" style="font-size:20px;color:#4a6b57;text-decoration:none;">`)
	buf.WriteString(html.EscapeString(m.SiteName))
	buf.WriteString(`</a>`)
	if m.Category != "" {
		buf.WriteString(`<div style="font-size:12px;color:#8a8a8a;text-transform:uppercase;letter-spacing:1px;margin-top:4px;">`)
		buf.WriteString(html.EscapeString(m.Category))
		buf.WriteString(`</div>`)
	}
	buf.WriteString(`</div>`)

	// Title and excerpt
	buf.WriteString(`<h1 style="font-size:26px;line-height:1.3;margin:24px 0 8px;">`)
	buf.WriteString(html.EscapeString(m.Title))
	buf.WriteString(`</h1>`)
	if m.Excerpt != "" {
		buf.WriteString(`<p style="font-size:16px;color:#5a5a5a;font-style:italic;margin:0 0 16px;">`)
		buf.WriteString(html.EscapeString(m.Excerpt))
		buf.WriteString(`</p>`)
	}

	// Body content is already HTML.
	buf.WriteString(`<div style="font-size:16px;line-height:1.6;">`)
	buf.WriteString(m.Content)
	buf.WriteString(`</div>`)

	// Footer
	buf.WriteString(`<div style="margin-top:32px;padding-top:16px;border-top:1px solid #ddd;font-size:12px;color:#8a8a8a;text-align:center;">`)
	buf.WriteString(`<p>You are receiving this because you subscribed at `)
	buf.WriteString(`<a href="` + html.EscapeString(m.SiteURL) + `" style="color:#4a6b57;">` + html.EscapeString(m.SiteName) + `</a>.</p>`)
	if m.UnsubscribeURL != "" {
		buf.WriteString(`<p><a href="` + html.EscapeString(m.UnsubscribeURL) + `" style="color:#8a8a8a;">Unsubscribe</a></p>`)
	}
	buf.WriteString(`</div>`)

	if m.OpenPixelURL != "" {
		buf.WriteString(`<img src="` + html.EscapeString(m.OpenPixelURL) + `" width="1" height="1" alt="" style="display:block;">`)
	}
	buf.WriteString(`</div></body></html>`)
}
