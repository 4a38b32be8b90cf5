package email

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailybrief/internal/domain"
)

func rankedItems(n int) []domain.RankedItem {
	items := make([]domain.RankedItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, domain.RankedItem{
			DigestID:    int64(i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
			Title:       fmt.Sprintf("Story %d", i),
			Summary:     fmt.Sprintf("Summary %d", i),
			ContentType: domain.ContentTypeArticle,
			Rank:        i,
			Score:       float64(100 - i),
		})
	}
	return items
}

func TestComposeKeepsTopTen(t *testing.T) {
	t.Parallel()

	composer := NewComposer()
	content := composer.Compose(domain.UserProfile{Name: "Ada"}, "intro", rankedItems(15), time.Now())

	require.Len(t, content.Sections, 10)
	require.Equal(t, "Story 1", content.Sections[0].Title)
	require.Equal(t, "Story 10", content.Sections[9].Title)
	require.Equal(t, 1, content.Sections[0].Position)
}

func TestComposeOrdersByRankRegardlessOfInputOrder(t *testing.T) {
	t.Parallel()

	items := rankedItems(3)
	items[0], items[2] = items[2], items[0]

	composer := NewComposer()
	content := composer.Compose(domain.UserProfile{}, "intro", items, time.Now())

	require.Equal(t, "Story 1", content.Sections[0].Title)
	require.Equal(t, "Story 3", content.Sections[2].Title)
}

func TestComposeGreeting(t *testing.T) {
	t.Parallel()

	composer := NewComposer()

	withName := composer.Compose(domain.UserProfile{Name: "Ada"}, "intro", nil, time.Now())
	require.Equal(t, "Hey Ada,", withName.Greeting)

	// No name, no greeting line at all.
	anonymous := composer.Compose(domain.UserProfile{}, "intro", nil, time.Now())
	require.Empty(t, anonymous.Greeting)
	require.NotContains(t, composer.RenderText(anonymous), "Hey")
}

func TestComposeVideoThumbnail(t *testing.T) {
	t.Parallel()

	composer := NewComposer()
	content := composer.Compose(domain.UserProfile{}, "intro", []domain.RankedItem{
		{
			Title:       "A video",
			URL:         "https://www.youtube.com/watch?v=vid00000001",
			ContentType: domain.ContentTypeVideo,
			Rank:        1,
		},
		{
			Title:       "An article",
			URL:         "https://example.com/post",
			ContentType: domain.ContentTypeArticle,
			Rank:        2,
		},
	}, time.Now())

	require.Equal(t, "https://img.youtube.com/vi/vid00000001/maxresdefault.jpg", content.Sections[0].ThumbnailURL)
	require.Empty(t, content.Sections[1].ThumbnailURL)

	html, err := composer.RenderHTML(content)
	require.NoError(t, err)
	require.Contains(t, html, "maxresdefault.jpg")
	require.Contains(t, html, "Watch video")
	require.Contains(t, html, "Read more")
}

func TestFormatDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		day  int
		want string
	}{
		{1, "Thursday, January 1st"},
		{2, "Friday, January 2nd"},
		{3, "Saturday, January 3rd"},
		{4, "Sunday, January 4th"},
		{11, "Sunday, January 11th"},
		{12, "Monday, January 12th"},
		{13, "Tuesday, January 13th"},
		{21, "Wednesday, January 21st"},
		{22, "Thursday, January 22nd"},
		{23, "Friday, January 23rd"},
		{31, "Saturday, January 31st"},
	}

	for _, tt := range tests {
		got := FormatDate(time.Date(2026, time.January, tt.day, 8, 0, 0, 0, time.UTC))
		require.Equal(t, tt.want, got)
	}
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	composer := NewComposer()
	content := composer.Compose(domain.UserProfile{Name: "Ada"}, "Your top stories today.",
		rankedItems(2), time.Date(2026, time.August, 30, 8, 0, 0, 0, time.UTC))

	text := composer.RenderText(content)
	require.Contains(t, text, "Hey Ada,")
	require.Contains(t, text, "Sunday, August 30th")
	require.Contains(t, text, "Your top stories today.")
	require.Contains(t, text, "1. Story 1")
	require.Contains(t, text, "Read more: https://example.com/2")
	require.Contains(t, content.Subject, "Your Daily Brief - Sunday, August 30th")
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	t.Parallel()

	composer := NewComposer()
	content := composer.Compose(domain.UserProfile{}, "intro", []domain.RankedItem{
		{Title: "<script>alert(1)</script>", URL: "https://example.com", Summary: "s", Rank: 1, ContentType: domain.ContentTypeArticle},
	}, time.Now())

	html, err := composer.RenderHTML(content)
	require.NoError(t, err)
	require.NotContains(t, html, "<script>alert(1)</script>")
}
