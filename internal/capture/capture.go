// Package capture fetches web pages and reduces them to readable text.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxBodyBytes = 10 << 20
)

// Article is the readable core of a fetched page. HTML holds the raw page
// bytes for archiving alongside the extracted text.
type Article struct {
	URL   string
	Title string
	Text  string
	HTML  []byte
}

// Fetcher downloads pages and extracts their main content.
type Fetcher struct {
	client   *http.Client
	sanitize *bluemonday.Policy
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: 20 * time.Second},
		sanitize: bluemonday.UGCPolicy(),
	}
}

// Fetch retrieves a page and returns its title and main content as
// lightweight markdown. The title falls back to the <title> element and
// finally to the URL itself when extraction finds nothing.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Article, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", rawURL, err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = pageTitle(body)
	}
	if title == "" {
		title = rawURL
	}

	text := f.toMarkdown(article.Content)
	if text == "" {
		text = strings.TrimSpace(article.TextContent)
	}

	return &Article{URL: rawURL, Title: title, Text: text, HTML: body}, nil
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// toMarkdown sanitizes extracted HTML and renders a compact markdown view
// of it: headings, paragraphs, lists, links, and code survive, everything
// else flattens to text.
func (f *Fetcher) toMarkdown(content string) string {
	clean := f.sanitize.Sanitize(content)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return ""
	}

	var b strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			renderNode(&b, node)
		}
	})
	return collapseBlankLines(b.String())
}

func renderNode(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n")
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case "p", "div", "section", "article":
		b.WriteString("\n\n")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case "br":
		b.WriteString("\n")
	case "li":
		b.WriteString("\n- ")
		renderChildren(b, n)
	case "ul", "ol", "blockquote":
		b.WriteString("\n")
		renderChildren(b, n)
		b.WriteString("\n")
	case "a":
		href := attr(n, "href")
		var inner strings.Builder
		renderChildren(&inner, n)
		label := strings.TrimSpace(inner.String())
		if href != "" && label != "" && label != href {
			fmt.Fprintf(b, "[%s](%s)", label, href)
		} else {
			b.WriteString(label)
		}
	case "pre":
		var inner strings.Builder
		renderChildren(&inner, n)
		b.WriteString("\n\n```\n")
		b.WriteString(strings.Trim(inner.String(), "\n"))
		b.WriteString("\n```\n\n")
	case "code":
		var inner strings.Builder
		renderChildren(&inner, n)
		b.WriteString("`" + inner.String() + "`")
	case "strong", "b":
		b.WriteString("**")
		renderChildren(b, n)
		b.WriteString("**")
	case "em", "i":
		b.WriteString("*")
		renderChildren(b, n)
		b.WriteString("*")
	case "img", "script", "style":
		// dropped
	default:
		renderChildren(b, n)
	}
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, strings.TrimLeft(trimmed, " \t"))
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
