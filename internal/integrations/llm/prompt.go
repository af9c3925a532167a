package llm

import (
	"fmt"
	"strings"

	"taskradar/internal/domain"
)

func buildSystemPrompt(skills []string) string {
	var sb strings.Builder
	sb.WriteString("You are a freelance project analyst. You help a developer decide whether to take on Reddit freelance tasks.\n\n")
	sb.WriteString("The developer's skills are:\n")
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	sb.WriteString(`
Analyze the task post and respond in JSON format ONLY, no markdown, no explanation outside JSON:
{
    "worth_taking": true/false,
    "confidence": 0.0-1.0,
    "required_skills": ["skill1", "skill2"],
    "estimated_hours": number,
    "suggested_bid_usd": number,
    "difficulty": "easy" / "medium" / "hard",
    "red_flags": ["flag1"] or [],
    "summary": "One sentence summary of what the client needs",
    "reply_draft": "A short, professional reply you can post on Reddit to express interest"
}

Rules:
- If the task involves anything illegal, unethical, or accessing someone else's accounts, set worth_taking to false and explain in red_flags
- Be realistic about hours and pricing - this is r/slavelabour level, not enterprise
- suggested_bid_usd should be competitive but not too low (minimum $20 for any task)
- reply_draft should be casual, friendly, and show you understand the task
- Keep reply_draft under 100 words
`)
	return sb.String()
}

func buildUserPrompt(r domain.TaskResult) string {
	sub := r.Subreddit
	if sub == "" {
		sub = "unknown"
	}
	content := truncate(r.Text, maxExcerptChars)
	if strings.TrimSpace(content) == "" {
		content = "No content"
	}
	budget := "Not specified"
	if r.Budget != nil {
		budget = fmt.Sprintf("$%g", *r.Budget)
	}
	fresh := r.FreshnessLabel
	if fresh == "" {
		fresh = "Unknown"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reddit Post from r/%s:\n\n", sub)
	fmt.Fprintf(&sb, "Title: %s\n\n", r.Title)
	fmt.Fprintf(&sb, "Content: %s\n\n", content)
	fmt.Fprintf(&sb, "Post score: %d | Comments: %d\n", r.Score, r.NumComments)
	fmt.Fprintf(&sb, "Budget mentioned: %s\n", budget)
	fmt.Fprintf(&sb, "Freshness: %s", fresh)
	return sb.String()
}
