package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dailybrief/internal/domain"
	"dailybrief/internal/ports"
)

const digestSystemPrompt = `You are an expert news editor. You receive one piece of content and produce a digest for a daily email briefing.

Respond with a JSON object with exactly two keys:
  "title": a sharp, factual headline of at most 12 words
  "summary": 2-4 sentences capturing what matters and why

Write in plain language. Do not invent facts that are not in the content.`

// DigestAgent turns one content item into a digest via the completion
// endpoint.
type DigestAgent struct {
	completer Completer
}

var _ ports.Summarizer = (*DigestAgent)(nil)

// NewDigestAgent wires a completer.
func NewDigestAgent(completer Completer) *DigestAgent {
	return &DigestAgent{completer: completer}
}

// SummarizeArticle digests an article. The full body is preferred over the
// feed description when it has been backfilled.
func (a *DigestAgent) SummarizeArticle(ctx context.Context, title, description, markdown string) (domain.DigestOutput, error) {
	content := markdown
	if strings.TrimSpace(content) == "" {
		content = description
	}
	return a.summarize(ctx, "article", title, content)
}

// SummarizeVideo digests a video. The transcript is preferred over the
// channel description when one was fetched.
func (a *DigestAgent) SummarizeVideo(ctx context.Context, title, description, transcript string) (domain.DigestOutput, error) {
	content := transcript
	if strings.TrimSpace(content) == "" {
		content = description
	}
	return a.summarize(ctx, "video", title, content)
}

func (a *DigestAgent) summarize(ctx context.Context, kind, title, content string) (domain.DigestOutput, error) {
	if strings.TrimSpace(content) == "" && strings.TrimSpace(title) == "" {
		return domain.DigestOutput{}, fmt.Errorf("summarize %s: nothing to summarize", kind)
	}

	prompt := fmt.Sprintf("Content type: %s\n\nTitle: %s\n\n%s", kind, title, content)

	reply, err := a.completer.Complete(ctx, digestSystemPrompt, prompt, true)
	if err != nil {
		return domain.DigestOutput{}, fmt.Errorf("summarize %s: %w", kind, err)
	}

	var out struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(reply), &out); err != nil {
		return domain.DigestOutput{}, fmt.Errorf("summarize %s: decode reply: %w", kind, err)
	}
	if out.Title == "" || out.Summary == "" {
		return domain.DigestOutput{}, fmt.Errorf("summarize %s: reply missing title or summary", kind)
	}
	return domain.DigestOutput{Title: out.Title, Summary: out.Summary}, nil
}
