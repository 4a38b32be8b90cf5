package readability

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"dailybrief/internal/ports"
)

// Fetcher downloads a page, strips it to the readable article and converts
// that to markdown.
type Fetcher struct {
	client *http.Client
}

var _ ports.BodyFetcher = (*Fetcher)(nil)

// NewFetcher builds a body fetcher using the given HTTP client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Markdown fetches the page at url and returns its readable content as
// markdown.
func (f *Fetcher) Markdown(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; dailybrief/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page %s returned %d", pageURL, resp.StatusCode)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	markdown, err := HTMLToMarkdown(article.Content)
	if err != nil {
		return "", fmt.Errorf("convert article: %w", err)
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("page %s: no readable content", pageURL)
	}
	return markdown, nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// HTMLToMarkdown renders cleaned article HTML as markdown. The output covers
// the block structure digests need (headings, paragraphs, lists, code,
// quotes, links); presentation detail is dropped.
func HTMLToMarkdown(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			renderChildren(&b, node)
		}
	})

	out := blankLines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out), nil
}

func renderChildren(b *strings.Builder, node *html.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		renderNode(b, child)
	}
}

func renderNode(b *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		b.WriteString(collapseSpace(node.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	switch node.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(node.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		b.WriteString(strings.TrimSpace(inlineText(node)))
		b.WriteString("\n\n")
	case "p":
		b.WriteString("\n\n")
		renderChildren(b, node)
		b.WriteString("\n\n")
	case "br":
		b.WriteString("\n")
	case "a":
		text := strings.TrimSpace(inlineText(node))
		href := attr(node, "href")
		switch {
		case text == "":
		case href == "":
			b.WriteString(text)
		default:
			fmt.Fprintf(b, "[%s](%s)", text, href)
		}
	case "strong", "b":
		b.WriteString("**")
		renderChildren(b, node)
		b.WriteString("**")
	case "em", "i":
		b.WriteString("*")
		renderChildren(b, node)
		b.WriteString("*")
	case "code":
		b.WriteString("`" + inlineText(node) + "`")
	case "pre":
		b.WriteString("\n\n```\n")
		b.WriteString(strings.TrimRight(rawText(node), "\n"))
		b.WriteString("\n```\n\n")
	case "blockquote":
		var quoted strings.Builder
		renderChildren(&quoted, node)
		b.WriteString("\n\n")
		for _, line := range strings.Split(strings.TrimSpace(quoted.String()), "\n") {
			b.WriteString("> " + strings.TrimSpace(line) + "\n")
		}
		b.WriteString("\n")
	case "ul":
		b.WriteString("\n\n")
		renderListItems(b, node, func(int) string { return "- " })
		b.WriteString("\n")
	case "ol":
		b.WriteString("\n\n")
		renderListItems(b, node, func(i int) string { return fmt.Sprintf("%d. ", i+1) })
		b.WriteString("\n")
	case "script", "style", "img", "figure", "iframe", "noscript":
		// Dropped entirely.
	default:
		renderChildren(b, node)
	}
}

func renderListItems(b *strings.Builder, list *html.Node, marker func(int) string) {
	i := 0
	for child := list.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.Data != "li" {
			continue
		}
		var item strings.Builder
		renderChildren(&item, child)
		b.WriteString(marker(i) + strings.TrimSpace(item.String()) + "\n")
		i++
	}
}

// inlineText flattens an element to plain text with whitespace collapsed.
func inlineText(node *html.Node) string {
	return collapseSpace(rawText(node))
}

func rawText(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return b.String()
}

// attr returns the value of the named attribute, or "" when absent.
func attr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var spaceRun = regexp.MustCompile(`[ \t\r\n]+`)

func collapseSpace(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}
