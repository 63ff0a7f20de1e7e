package render

import (
	"bytes"
	"html/template"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// writeHTML executes the request's template and writes the page to its output directory
func writeHTML(req *Request) (string, []byte, error) {
	tpl, err := template.ParseFiles(req.TemplateFile)
	if err != nil {
		return "", nil, &TemplateError{File: req.TemplateFile, Err: err}
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, map[string]interface{}(req.Data)); err != nil {
		return "", nil, &TemplateError{File: req.TemplateFile, Err: err}
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return "", nil, err
	}

	htmlFile := filepath.Join(req.OutputDir, req.SaveID+".html")
	if err := os.WriteFile(htmlFile, buf.Bytes(), 0644); err != nil {
		return "", nil, err
	}

	return htmlFile, buf.Bytes(), nil
}

// inlineStylesheets replaces <link rel="stylesheet"> tags whose href is
// relative to the page file with a <style> block holding the file's contents.
// Remote and unreadable stylesheets keep their link.
func inlineStylesheets(htmlFile string, page []byte) []byte {
	base := filepath.Dir(htmlFile)
	z := html.NewTokenizer(bytes.NewReader(page))

	var out bytes.Buffer
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				return out.Bytes()
			}
			// Keep the page as rendered rather than a partial rewrite
			return page
		}

		raw := append([]byte(nil), z.Raw()...)

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			if css, ok := readStylesheet(base, z.Token()); ok {
				out.WriteString("<style>\n")
				out.Write(css)
				out.WriteString("\n</style>")
				continue
			}
		}

		out.Write(raw)
	}
}

func readStylesheet(base string, tok html.Token) ([]byte, bool) {
	if tok.Data != "link" {
		return nil, false
	}

	var rel, href string
	for _, attr := range tok.Attr {
		switch attr.Key {
		case "rel":
			rel = attr.Val
		case "href":
			href = attr.Val
		}
	}
	if !strings.EqualFold(rel, "stylesheet") || href == "" {
		return nil, false
	}

	u, err := url.Parse(href)
	if err != nil || u.Scheme != "" || u.Host != "" || strings.HasPrefix(u.Path, "/") {
		return nil, false
	}

	css, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(u.Path)))
	if err != nil {
		return nil, false
	}
	return css, true
}
