package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// channelIDPatterns match the channel id embedded in a channel page, in
// order of reliability.
var channelIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"channelId":"(UC[a-zA-Z0-9_-]{22})"`),
	regexp.MustCompile(`"externalId":"(UC[a-zA-Z0-9_-]{22})"`),
	regexp.MustCompile(`channel/(UC[a-zA-Z0-9_-]{22})`),
}

// Resolver scrapes a channel page to turn a handle into the stable UC
// channel id.
type Resolver struct {
	client  *http.Client
	baseURL string
}

// NewResolver builds a resolver using the given HTTP client.
func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{client: client, baseURL: "https://www.youtube.com"}
}

// NewResolverForURL is used by tests to point the resolver at a local server.
func NewResolverForURL(client *http.Client, baseURL string) *Resolver {
	r := NewResolver(client)
	r.baseURL = strings.TrimSuffix(baseURL, "/")
	return r
}

// Resolve fetches the channel page for a handle and extracts the channel id.
func (r *Resolver) Resolve(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(handle, "@")

	pageURL := fmt.Sprintf("%s/@%s", r.baseURL, handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; dailybrief/1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch channel page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("channel page for @%s returned %d", handle, resp.StatusCode)
	}

	// Channel pages run to a few MB; the id appears in the head metadata.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("read channel page: %w", err)
	}

	if id := ExtractChannelID(string(body)); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no channel id found for @%s", handle)
}

// ExtractChannelID scans page HTML for the first embedded UC channel id.
func ExtractChannelID(page string) string {
	for _, pattern := range channelIDPatterns {
		if m := pattern.FindStringSubmatch(page); m != nil {
			return m[1]
		}
	}
	return ""
}
