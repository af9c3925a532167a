package domain

import "time"

// Post is a single harvested submission. Text is the self text, already
// truncated by the data source.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	URL         string    `json:"url"`
	Subreddit   string    `json:"subreddit"`
	Author      string    `json:"author"`
	Flair       string    `json:"flair,omitempty"`
	Created     time.Time `json:"created"`
}

// FullText is the text the scorer sees: title and body joined by a space.
func (p Post) FullText() string {
	return p.Title + " " + p.Text
}

// SignalScore is one projection of a post onto a pattern set.
type SignalScore struct {
	Score   int      `json:"score"`
	Matches []string `json:"matches"`
}
