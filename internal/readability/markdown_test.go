package readability

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTMLToMarkdown(t *testing.T) {
	t.Parallel()

	html := `<body>
<h1>Main Title</h1>
<p>An intro with a <a href="https://example.com">link</a> and <strong>bold</strong> text.</p>
<h2>Details</h2>
<ul><li>first</li><li>second</li></ul>
<ol><li>one</li><li>two</li></ol>
<pre>func main() {}</pre>
<blockquote>quoted wisdom</blockquote>
<p>Inline <code>code</code> too.</p>
<img src="ignored.png">
<script>alert("dropped")</script>
</body>`

	got, err := HTMLToMarkdown(html)
	require.NoError(t, err)

	require.Contains(t, got, "# Main Title")
	require.Contains(t, got, "## Details")
	require.Contains(t, got, "[link](https://example.com)")
	require.Contains(t, got, "**bold**")
	require.Contains(t, got, "- first\n- second")
	require.Contains(t, got, "1. one\n2. two")
	require.Contains(t, got, "```\nfunc main() {}\n```")
	require.Contains(t, got, "> quoted wisdom")
	require.Contains(t, got, "`code`")
	require.NotContains(t, got, "dropped")
	require.NotContains(t, got, "ignored.png")
	require.False(t, strings.Contains(got, "\n\n\n"), "no runs of blank lines")
}

func TestFetcherMarkdown(t *testing.T) {
	t.Parallel()

	page := `<!DOCTYPE html>
<html><head><title>Post</title></head>
<body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<article>
<h1>Why Caching Matters</h1>
<p>Caching reduces latency by keeping hot data close to the consumer. This paragraph
needs to be long enough for the readability extraction to treat it as the main
content of the page rather than boilerplate navigation chrome.</p>
<p>A second paragraph reinforces the point with more detail about eviction
policies, hit rates, and the cost of a cold start after deployment.</p>
</article>
<footer>Copyright</footer>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())

	md, err := fetcher.Markdown(context.Background(), server.URL+"/post")
	require.NoError(t, err)
	require.Contains(t, md, "Caching reduces latency")
	require.NotContains(t, md, "Copyright")
}

func TestFetcherMarkdownErrorOnHTTPFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())

	_, err := fetcher.Markdown(context.Background(), server.URL+"/missing")
	require.Error(t, err)
}
