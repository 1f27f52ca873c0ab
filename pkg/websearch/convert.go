package websearch

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// excessiveLinesRe collapses runs of blank lines left over from
// conversion.
var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Extracted is the readable content distilled from one page.
type Extracted struct {
	Title    string
	Markdown string
}

// Converter reduces a fetched HTML page to readable markdown.
type Converter struct {
	md *md.Converter
}

// NewConverter creates a converter with GitHub-flavored markdown output.
func NewConverter() *Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &Converter{md: conv}
}

// Convert runs readability extraction over the page and converts the
// article to markdown. pageURL resolves relative links in the article.
func (c *Converter) Convert(body []byte, pageURL string) (*Extracted, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract readable content: %w", err)
	}

	markdown, err := c.md.ConvertString(article.Content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = tidyMarkdown(markdown)

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = extractHTMLTitle(body)
	}

	return &Extracted{Title: title, Markdown: markdown}, nil
}

// extractHTMLTitle pulls the document <title>, used when readability
// does not identify one.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// tidyMarkdown trims conversion noise: trailing whitespace per line and
// runs of blank lines.
func tidyMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
