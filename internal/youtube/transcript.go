package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dailybrief/internal/ports"
)

// ErrTranscriptUnavailable reports that a video has no caption track. It is
// a terminal outcome, not a transient failure; callers record it and never
// retry.
var ErrTranscriptUnavailable = errors.New("youtube: transcript unavailable")

// TranscriptClient fetches caption tracks through the public timedtext API.
type TranscriptClient struct {
	client  *http.Client
	baseURL string
	lang    string
}

var _ ports.TranscriptFetcher = (*TranscriptClient)(nil)

// NewTranscriptClient builds a transcript fetcher for English captions.
func NewTranscriptClient(client *http.Client) *TranscriptClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &TranscriptClient{
		client:  client,
		baseURL: "https://www.youtube.com/api/timedtext",
		lang:    "en",
	}
}

// NewTranscriptClientForURL is used by tests to point at a local server.
func NewTranscriptClientForURL(client *http.Client, baseURL string) *TranscriptClient {
	c := NewTranscriptClient(client)
	c.baseURL = baseURL
	return c
}

type timedText struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript returns the caption text for a video as one space-joined string.
// Videos without captions yield ErrTranscriptUnavailable.
func (c *TranscriptClient) Transcript(ctx context.Context, videoID string) (string, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", c.lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("video %s: %w", videoID, ErrTranscriptUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("timedtext for %s returned %d", videoID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	// The API answers 200 with an empty body when no caption track exists.
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", fmt.Errorf("video %s: %w", videoID, ErrTranscriptUnavailable)
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse transcript for %s: %w", videoID, err)
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Value))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("video %s: %w", videoID, ErrTranscriptUnavailable)
	}
	return strings.Join(parts, " "), nil
}
