package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dailybrief/internal/domain"
	"dailybrief/internal/email"
	"dailybrief/internal/ports"
)

const introSystemPrompt = `You write the opening paragraph of a personalized daily news email. You receive the top stories of the day and weave them into 2-3 warm, conversational sentences that make the reader want to keep reading. Mention one or two themes; do not list every story. Reply with the paragraph only, no JSON, no quotes.`

const introSummaryLimit = 200

// IntroAgent writes the email introduction across the top ranked items.
type IntroAgent struct {
	completer Completer
	logger    *slog.Logger
}

var _ ports.IntroWriter = (*IntroAgent)(nil)

// NewIntroAgent wires a completer.
func NewIntroAgent(completer Completer, logger *slog.Logger) *IntroAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntroAgent{completer: completer, logger: logger}
}

// WriteIntroduction generates the opening paragraph. No items, or a failing
// completion, yields the static fallback so a broken model never blocks
// delivery.
func (a *IntroAgent) WriteIntroduction(ctx context.Context, items []domain.RankedItem) (string, error) {
	if len(items) == 0 {
		return email.FallbackIntroduction, nil
	}

	var b strings.Builder
	b.WriteString("Today's top stories:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s: %s\n", item.Title, truncate(item.Summary, introSummaryLimit))
	}

	reply, err := a.completer.Complete(ctx, introSystemPrompt, b.String(), false)
	if err != nil {
		a.logger.Warn("introduction generation failed, using fallback", "error", err)
		return email.FallbackIntroduction, nil
	}

	intro := strings.TrimSpace(reply)
	if intro == "" {
		return email.FallbackIntroduction, nil
	}
	return intro, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
