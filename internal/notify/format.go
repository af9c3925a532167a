package notify

import (
	"fmt"
	"html"
	"strings"

	"taskradar/internal/domain"
)

// MaxDigestPosts caps how many posts one digest lists.
const MaxDigestPosts = 10

// Message is one batch of newly qualifying posts. Each channel renders it
// in its own markup.
type Message struct {
	Title string
	Posts []domain.EnrichedPost
}

func NewMessage(posts []domain.EnrichedPost) Message {
	return Message{
		Title: fmt.Sprintf("%d new Reddit tasks", len(posts)),
		Posts: posts,
	}
}

func (m Message) digest() []domain.EnrichedPost {
	if len(m.Posts) > MaxDigestPosts {
		return m.Posts[:MaxDigestPosts]
	}
	return m.Posts
}

func budgetString(b *float64, none string) string {
	if b == nil || *b == 0 {
		return none
	}
	return fmt.Sprintf("$%.0f", *b)
}

func skillsString(matches []string) string {
	if len(matches) > 5 {
		matches = matches[:5]
	}
	if len(matches) == 0 {
		return "N/A"
	}
	return strings.Join(matches, ", ")
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

// FormatHTML renders the rich digest used by HTML channels.
func FormatHTML(m Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h2>Found %d matching tasks</h2>", len(m.Posts))
	for _, p := range m.digest() {
		sb.WriteString(formatPostHTML(p))
	}
	return sb.String()
}

func formatPostHTML(p domain.EnrichedPost) string {
	e := html.EscapeString
	var sb strings.Builder
	sb.WriteString(`<div style="margin-bottom:16px;padding:12px;border-left:3px solid #00ced1;background:#f8f9fa;">`)
	fmt.Fprintf(&sb, `<h4 style="margin:0 0 8px 0;">%s</h4>`, e(p.Title))
	fmt.Fprintf(&sb, "<p>r/%s | %s | Budget: %s</p>", e(p.Subreddit), e(p.FreshnessLabel), budgetString(p.Budget, "Not specified"))
	fmt.Fprintf(&sb, "<p>Regex Skills: %s</p>", e(skillsString(p.SkillMatches)))
	fmt.Fprintf(&sb, `<p style="color:#666;">%s</p>`, e(preview(p.Text, 200)))
	fmt.Fprintf(&sb, `<a href="%s">Open on Reddit</a>`, e(p.URL))

	if a := p.Analysis; a != nil {
		color := "#d63031"
		if a.WorthTaking {
			color = "#00b894"
		}
		sb.WriteString(`<div style="margin-top:10px;padding:10px;background:#eef;border-radius:6px;">`)
		sb.WriteString("<p><b>AI Analysis:</b></p>")
		fmt.Fprintf(&sb, `<p>Worth taking: <span style="color:%s;font-weight:bold;">%s</span></p>`, color, yesNo(a.WorthTaking))
		fmt.Fprintf(&sb, "<p>Difficulty: %s | Est. hours: %g | Suggested bid: $%g</p>", e(a.Difficulty), a.EstimatedHours, a.SuggestedBidUSD)
		fmt.Fprintf(&sb, "<p>Skills needed: %s</p>", e(strings.Join(a.RequiredSkills, ", ")))
		fmt.Fprintf(&sb, "<p>Red flags: %s</p>", e(orNone(a.RedFlags)))
		fmt.Fprintf(&sb, "<p>Summary: %s</p>", e(a.Summary))
		fmt.Fprintf(&sb, `<p style="background:#fff;padding:8px;border-radius:4px;margin-top:6px;"><b>Draft reply:</b><br>%s</p>`, e(a.ReplyDraft))
		sb.WriteString("</div>")
	}
	sb.WriteString("</div>")
	return sb.String()
}

// FormatTelegram renders Telegram HTML messages: one per post for small
// batches, otherwise a single numbered digest.
func FormatTelegram(m Message) []string {
	if len(m.Posts) <= 2 {
		out := make([]string, 0, len(m.Posts))
		for _, p := range m.Posts {
			out = append(out, formatPostTelegram(p))
		}
		return out
	}

	e := html.EscapeString
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Found %d matching tasks</b>\n\n", len(m.Posts))
	for i, p := range m.digest() {
		fmt.Fprintf(&sb, "%d. <b>%s</b>\n   %s\n   <a href=\"%s\">Open</a>\n\n", i+1, e(preview(p.Title, 80)), e(p.FreshnessLabel), e(p.URL))
	}
	return []string{strings.TrimRight(sb.String(), "\n")}
}

func formatPostTelegram(p domain.EnrichedPost) string {
	e := html.EscapeString
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", e(p.Title))
	fmt.Fprintf(&sb, "r/%s | %s\n", e(p.Subreddit), e(p.FreshnessLabel))
	fmt.Fprintf(&sb, "Budget: %s | Skills: %s\n", budgetString(p.Budget, "N/A"), e(skillsString(p.SkillMatches)))
	fmt.Fprintf(&sb, "%s\n", e(preview(p.Text, 200)))
	if a := p.Analysis; a != nil {
		sb.WriteString("\n--- AI Analysis ---\n")
		fmt.Fprintf(&sb, "Worth: %s | %s | ~%gh | $%g\n", yesNo(a.WorthTaking), e(a.Difficulty), a.EstimatedHours, a.SuggestedBidUSD)
		fmt.Fprintf(&sb, "Summary: %s\n", e(a.Summary))
	}
	fmt.Fprintf(&sb, "<a href=\"%s\">Open</a>\n", e(p.URL))
	return sb.String()
}

// FormatSlack renders a Slack mrkdwn digest.
func FormatSlack(m Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Found %d matching tasks*\n", len(m.Posts))
	for i, p := range m.digest() {
		fmt.Fprintf(&sb, "%d. <%s|%s>\n", i+1, p.URL, slackEscape(preview(p.Title, 80)))
		fmt.Fprintf(&sb, "    r/%s | %s | Budget: %s | Skills: %s\n", p.Subreddit, p.FreshnessLabel, budgetString(p.Budget, "N/A"), slackEscape(skillsString(p.SkillMatches)))
		if a := p.Analysis; a != nil {
			fmt.Fprintf(&sb, "    AI: %s | %s | ~%gh | $%g | %s\n", yesNo(a.WorthTaking), a.Difficulty, a.EstimatedHours, a.SuggestedBidUSD, slackEscape(a.Summary))
		}
	}
	if extra := len(m.Posts) - MaxDigestPosts; extra > 0 {
		fmt.Fprintf(&sb, "_...and %d more_\n", extra)
	}
	return sb.String()
}

func slackEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}
