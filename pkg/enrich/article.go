package enrich

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ErrEmptyDocument is returned when a fetched page yields no usable title or
// body text. Such pages are discarded, not retried.
var ErrEmptyDocument = errors.New("document has empty title or body")

// Article is the parsed content of one external web page, keyed by the
// normalized URL it was fetched from.
type Article struct {
	URL         string
	Title       string
	Content     string
	Authors     []string
	PublishDate *time.Time
	TopImageURL string
}

var (
	multiNewline = regexp.MustCompile(`\n+`)
	multiSpace   = regexp.MustCompile(`[ \t]+`)
)

// ParseArticle extracts the title, body text, authors, publish date, and
// representative image from raw HTML. An empty title or body is an error so
// the caller drops the item.
func ParseArticle(rawHTML []byte, normalizedURL string) (*Article, error) {
	doc, err := html.Parse(strings.NewReader(string(rawHTML)))
	if err != nil {
		return nil, err
	}

	a := &Article{URL: normalizedURL}
	var paragraphs []string
	var pageTitle string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "nav", "header", "footer", "aside":
				return
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					pageTitle = n.FirstChild.Data
				}
			case "meta":
				handleMeta(n, a)
			case "p":
				if text := nodeText(n); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if a.Title == "" {
		a.Title = pageTitle
	}
	a.Title = cleanText(a.Title)
	a.Content = cleanText(strings.Join(paragraphs, "\n"))

	if a.Title == "" || a.Content == "" {
		return nil, ErrEmptyDocument
	}
	return a, nil
}

// handleMeta reads the open-graph and article meta tags most publishers emit.
func handleMeta(n *html.Node, a *Article) {
	var property, name, content string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "property":
			property = attr.Val
		case "name":
			name = attr.Val
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}
	if content == "" {
		return
	}

	switch property {
	case "og:title":
		a.Title = content
	case "og:image":
		if a.TopImageURL == "" {
			a.TopImageURL = content
		}
	case "article:published_time":
		if ts := parseDate(content); ts != nil {
			a.PublishDate = ts
		}
	case "article:author":
		appendAuthors(a, content)
	}

	switch name {
	case "author":
		appendAuthors(a, content)
	case "date", "publish-date", "article.published":
		if a.PublishDate == nil {
			a.PublishDate = parseDate(content)
		}
	}
}

func appendAuthors(a *Article, content string) {
	// Author URLs in article:author tags carry no usable name.
	if strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://") {
		return
	}
	for _, name := range strings.Split(content, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		dup := false
		for _, existing := range a.Authors {
			if strings.EqualFold(existing, name) {
				dup = true
				break
			}
		}
		if !dup {
			a.Authors = append(a.Authors, name)
		}
	}
}

func parseDate(s string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func cleanText(s string) string {
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
