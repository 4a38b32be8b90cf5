package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"dailybrief/internal/domain"
	"dailybrief/internal/ports"
)

const rankerSystemPrompt = `You are a personalization engine for a daily news briefing. You receive a list of digests and a reader profile, and you order the digests by relevance to that reader.

Respond with a JSON object:
  {"items": [{"id": <digest id>, "rank": <1 = most relevant>, "score": <0-100>, "reason": "<one sentence>"}]}

Every input digest must appear exactly once. Ranks must be the numbers 1 through N with no gaps or repeats.`

// RankerAgent orders digests by relevance to one user profile.
type RankerAgent struct {
	completer Completer
}

var _ ports.Ranker = (*RankerAgent)(nil)

// NewRankerAgent wires a completer.
func NewRankerAgent(completer Completer) *RankerAgent {
	return &RankerAgent{completer: completer}
}

type rankedReply struct {
	Items []struct {
		ID     int64   `json:"id"`
		Rank   int     `json:"rank"`
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	} `json:"items"`
}

// Rank returns one RankedItem per digest, sorted by ascending rank. An empty
// input short-circuits without calling the model. A malformed model reply
// (wrong length, unknown or missing ids, ranks that are not a permutation of
// 1..N, scores outside 0..100) is an error.
func (a *RankerAgent) Rank(ctx context.Context, digests []domain.Digest, profile domain.UserProfile) ([]domain.RankedItem, error) {
	if len(digests) == 0 {
		return nil, nil
	}

	reply, err := a.completer.Complete(ctx, a.systemPrompt(profile), rankPrompt(digests, profile), true)
	if err != nil {
		return nil, fmt.Errorf("rank digests: %w", err)
	}

	var parsed rankedReply
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return nil, fmt.Errorf("rank digests: decode reply: %w", err)
	}

	return buildRanking(digests, parsed)
}

func (a *RankerAgent) systemPrompt(profile domain.UserProfile) string {
	if strings.TrimSpace(profile.SystemPrompt) != "" {
		return profile.SystemPrompt
	}
	return rankerSystemPrompt
}

func rankPrompt(digests []domain.Digest, profile domain.UserProfile) string {
	var b strings.Builder

	b.WriteString("Reader profile:\n")
	if profile.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", profile.Name)
	}
	if profile.Background != "" {
		fmt.Fprintf(&b, "Background: %s\n", profile.Background)
	}
	if profile.Interests != "" {
		fmt.Fprintf(&b, "Interests: %s\n", profile.Interests)
	}

	b.WriteString("\nDigests:\n")
	for _, d := range digests {
		fmt.Fprintf(&b, "- id=%d type=%s title=%q summary=%q\n", d.ID, d.ContentType, d.Title, d.Summary)
	}
	return b.String()
}

func buildRanking(digests []domain.Digest, parsed rankedReply) ([]domain.RankedItem, error) {
	n := len(digests)
	if len(parsed.Items) != n {
		return nil, fmt.Errorf("rank digests: got %d items for %d digests", len(parsed.Items), n)
	}

	byID := make(map[int64]domain.Digest, n)
	for _, d := range digests {
		byID[d.ID] = d
	}

	seenID := make(map[int64]bool, n)
	seenRank := make(map[int]bool, n)

	items := make([]domain.RankedItem, 0, n)
	for _, entry := range parsed.Items {
		digest, ok := byID[entry.ID]
		if !ok {
			return nil, fmt.Errorf("rank digests: unknown digest id %d", entry.ID)
		}
		if seenID[entry.ID] {
			return nil, fmt.Errorf("rank digests: duplicate digest id %d", entry.ID)
		}
		seenID[entry.ID] = true

		if entry.Rank < 1 || entry.Rank > n || seenRank[entry.Rank] {
			return nil, fmt.Errorf("rank digests: ranks are not a permutation of 1..%d", n)
		}
		seenRank[entry.Rank] = true

		if entry.Score < 0 || entry.Score > 100 {
			return nil, fmt.Errorf("rank digests: score %.1f out of range for id %d", entry.Score, entry.ID)
		}

		items = append(items, domain.RankedItem{
			DigestID:    digest.ID,
			URL:         digest.URL,
			Title:       digest.Title,
			Summary:     digest.Summary,
			ContentType: digest.ContentType,
			Score:       entry.Score,
			Rank:        entry.Rank,
			Reason:      entry.Reason,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Rank < items[j].Rank })
	return items, nil
}
