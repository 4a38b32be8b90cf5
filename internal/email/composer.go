package email

import (
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"
	"time"

	"dailybrief/internal/domain"
)

// Email section count is capped so the briefing stays scannable.
const maxSections = 10

// FallbackIntroduction opens the email when no introduction could be
// generated.
const FallbackIntroduction = "Here's your personalized news digest for today."

// Section is one story in the rendered email.
type Section struct {
	Position     int
	Title        string
	Summary      string
	URL          string
	ContentType  domain.ContentType
	ThumbnailURL string
}

// Content is a fully composed email before rendering.
type Content struct {
	Subject      string
	Greeting     string
	DateLine     string
	Introduction string
	Sections     []Section
}

// Composer assembles ranked items into a personalized briefing.
type Composer struct{}

// NewComposer returns a composer.
func NewComposer() *Composer { return &Composer{} }

// Compose builds the email for one recipient. Only the ten most relevant
// items are kept; the greeting is omitted when the profile has no name.
func (c *Composer) Compose(profile domain.UserProfile, introduction string, items []domain.RankedItem, now time.Time) Content {
	sorted := make([]domain.RankedItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	if len(sorted) > maxSections {
		sorted = sorted[:maxSections]
	}

	sections := make([]Section, 0, len(sorted))
	for i, item := range sorted {
		section := Section{
			Position:    i + 1,
			Title:       item.Title,
			Summary:     item.Summary,
			URL:         item.URL,
			ContentType: item.ContentType,
		}
		if item.ContentType == domain.ContentTypeVideo {
			if id := videoIDFromURL(item.URL); id != "" {
				section.ThumbnailURL = fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", id)
			}
		}
		sections = append(sections, section)
	}

	var greeting string
	if profile.Name != "" {
		greeting = fmt.Sprintf("Hey %s,", profile.Name)
	}

	dateLine := FormatDate(now)

	return Content{
		Subject:      "Your Daily Brief - " + dateLine,
		Greeting:     greeting,
		DateLine:     dateLine,
		Introduction: introduction,
		Sections:     sections,
	}
}

// FormatDate renders a date as "Monday, January 2nd". The 11th through 13th
// always take "th" regardless of their last digit.
func FormatDate(t time.Time) string {
	day := t.Day()
	suffix := "th"
	if day < 11 || day > 13 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%s, %s %d%s", t.Weekday(), t.Month(), day, suffix)
}

// videoIDFromURL extracts the video id from watch and short-link URLs.
func videoIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if strings.Contains(u.Host, "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	return ""
}

// RenderText renders the plain-text body.
func (c *Composer) RenderText(content Content) string {
	var b strings.Builder

	if content.Greeting != "" {
		b.WriteString(content.Greeting + "\n\n")
	}
	b.WriteString(content.DateLine + "\n\n")
	b.WriteString(content.Introduction + "\n\n")

	for _, s := range content.Sections {
		label := "Read more"
		if s.ContentType == domain.ContentTypeVideo {
			label = "Watch"
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n%s: %s\n\n", s.Position, s.Title, s.Summary, label, s.URL)
	}

	b.WriteString("Have a great day!\n")
	return b.String()
}

var htmlTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background-color:#f4f4f4;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:600px;margin:0 auto;padding:24px;background-color:#ffffff;">
    {{if .Greeting}}<p style="font-size:16px;color:#333;">{{.Greeting}}</p>{{end}}
    <p style="font-size:14px;color:#888;">{{.DateLine}}</p>
    <p style="font-size:16px;color:#333;line-height:1.5;">{{.Introduction}}</p>
    {{range .Sections}}
    <div style="margin:24px 0;padding-bottom:16px;border-bottom:1px solid #eee;">
      <h2 style="font-size:18px;color:#222;margin:0 0 8px;">{{.Position}}. {{.Title}}</h2>
      {{if .ThumbnailURL}}
      <a href="{{.URL}}"><img src="{{.ThumbnailURL}}" alt="{{.Title}}" style="width:100%;border-radius:6px;margin:8px 0;"></a>
      {{end}}
      <p style="font-size:14px;color:#555;line-height:1.5;margin:8px 0;">{{.Summary}}</p>
      {{if .ThumbnailURL}}
      <a href="{{.URL}}" style="font-size:14px;color:#1a73e8;">Watch video</a>
      {{else}}
      <a href="{{.URL}}" style="display:inline-block;padding:8px 16px;background-color:#1a73e8;color:#ffffff;border-radius:4px;text-decoration:none;font-size:14px;">Read more</a>
      {{end}}
    </div>
    {{end}}
    <p style="font-size:14px;color:#888;">Have a great day!</p>
  </div>
</body>
</html>`))

// RenderHTML renders the HTML body.
func (c *Composer) RenderHTML(content Content) (string, error) {
	var b strings.Builder
	if err := htmlTemplate.Execute(&b, content); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return b.String(), nil
}
