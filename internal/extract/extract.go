// Package extract turns attachment bytes into indexable plain text.
// Extraction is best-effort by contract: unsupported or malformed input
// yields an empty string, never an error.
package extract

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Extractor is one text-extraction capability. Implementations are
// registered at startup; call sites never check for libraries at runtime.
type Extractor interface {
	CanExtract(mime string) bool
	Extract(data []byte, mime string) string
}

// Set dispatches to the first extractor claiming the mime type.
type Set struct {
	extractors []Extractor
}

// DefaultSet returns the standard capability set: PDF, HTML, and plain text.
// Image OCR is deliberately absent; images extract to "".
func DefaultSet() *Set {
	return &Set{extractors: []Extractor{
		pdfExtractor{},
		htmlExtractor{},
		textExtractor{},
	}}
}

// Extract returns the plain text of a blob, or "" when no capability
// matches or extraction fails.
func (s *Set) Extract(data []byte, mimeType string) string {
	for _, e := range s.extractors {
		if e.CanExtract(mimeType) {
			return e.Extract(data, mimeType)
		}
	}
	return ""
}

// DetectMime guesses a mime type from the filename extension, falling back
// to content sniffing.
func DetectMime(filename string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		// TypeByExtension may include parameters ("text/plain; charset=utf-8")
		if i := strings.Index(t, ";"); i > 0 {
			t = t[:i]
		}
		return t
	}
	return http.DetectContentType(data)
}

type pdfExtractor struct{}

func (pdfExtractor) CanExtract(mime string) bool {
	return mime == "application/pdf"
}

func (pdfExtractor) Extract(data []byte, _ string) (text string) {
	// The pdf package panics on some malformed files.
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

type htmlExtractor struct{}

func (htmlExtractor) CanExtract(mime string) bool {
	return mime == "text/html" || mime == "application/xhtml+xml"
}

func (htmlExtractor) Extract(data []byte, _ string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return collapseWhitespace(doc.Text())
}

type textExtractor struct{}

func (textExtractor) CanExtract(mime string) bool {
	return strings.HasPrefix(mime, "text/")
}

func (textExtractor) Extract(data []byte, _ string) string {
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data))
	}
	// Latin-1 fallback: every byte maps to the same code point.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return strings.TrimSpace(string(runes))
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastBlank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !lastBlank {
				b.WriteString("\n")
			}
			lastBlank = true
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		lastBlank = false
	}
	return strings.TrimSpace(b.String())
}
