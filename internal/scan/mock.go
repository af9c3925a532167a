package scan

import (
	"time"

	"taskradar/internal/domain"
)

type mockPost struct {
	id, title, text string
	score, comments int
	ageDays         int
}

var mockPosts = []mockPost{
	{"mock1", "I wish there was a tool that could automatically organize my bookmarks",
		"I have thousands of bookmarks across different browsers and I can't find anything. Someone should build a cross-browser bookmark manager with AI categorization.",
		156, 42, 3},
	{"mock2", "Is there an app that tracks subscription spending automatically?",
		"I'd pay for something that connects to my bank and shows me all my recurring subscriptions in one place. Tired of manually checking statements.",
		89, 23, 5},
	{"mock3", "Looking for a tool to manage multiple GitHub accounts",
		"I have personal and work GitHub accounts and switching between them is a pain. Any solution that automates SSH key switching?",
		67, 18, 7},
	{"mock4", "Help me fix my laptop - screen flickering",
		"My laptop screen started flickering yesterday. Can't figure out what's wrong. Please help urgent!",
		12, 8, 2},
	{"mock5", "Can't log in to my account after password reset",
		"I reset my password but now it says invalid credentials. How do I recover my account?",
		5, 3, 1},
	{"mock6", "Someone should build a better alternative to Notion for offline use",
		"Notion is great but requires internet. We need a local-first note-taking app with similar features. I'd pay for this.",
		234, 67, 10},
	{"mock7", "Why isn't there a simple invoice generator for freelancers?",
		"All invoice tools are overcomplicated. I just want to enter hours, rate, and generate a PDF. That's it.",
		45, 12, 4},
	{"mock8", "My phone battery drains too fast",
		"Phone only lasts 4 hours now. Already tried factory reset. What else can I do?",
		8, 15, 6},
}

// MockPosts returns up to limit canned posts for exercising the UI without
// touching Reddit. Creation times are relative to now.
func MockPosts(now time.Time, limit int) []domain.Post {
	n := len(mockPosts)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]domain.Post, 0, n)
	for _, m := range mockPosts[:n] {
		out = append(out, domain.Post{
			ID:          m.id,
			Title:       m.title,
			Text:        m.text,
			Score:       m.score,
			NumComments: m.comments,
			URL:         "https://reddit.com/r/SideProject/comments/" + m.id,
			Subreddit:   "SideProject",
			Author:      "mock",
			Created:     now.Add(-time.Duration(m.ageDays) * 24 * time.Hour),
		})
	}
	return out
}
