package slackbot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskradar/internal/domain"
	"taskradar/internal/notify"
)

type fakeSlack struct {
	mu        sync.Mutex
	posted    map[string]string
	userLists int
}

func (f *fakeSlack) handler(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/chat.postMessage":
		f.posted[r.FormValue("channel")] = r.FormValue("text")
		fmt.Fprintf(w, `{"ok":true,"channel":%q,"ts":"1700000000.000100"}`, r.FormValue("channel"))
	case "/users.list":
		f.userLists++
		fmt.Fprint(w, `{"ok":true,"members":[
			{"id":"U01ALICE00","name":"alice","real_name":"Alice Smith","profile":{"display_name":"ally"}},
			{"id":"U01BOT0000","name":"helper","is_bot":true}
		],"response_metadata":{"next_cursor":""}}`)
	default:
		fmt.Fprint(w, `{"ok":false,"error":"unknown_method"}`)
	}
}

func newTestChannel(t *testing.T, target string) (*Channel, *fakeSlack) {
	t.Helper()
	fake := &fakeSlack{posted: map[string]string{}}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)
	ch := New("xoxb-test", target, slack.OptionAPIURL(server.URL+"/"))
	require.NotNil(t, ch)
	return ch, fake
}

func testMessage() notify.Message {
	return notify.NewMessage([]domain.EnrichedPost{{TaskResult: domain.TaskResult{
		Post:     domain.Post{ID: "a", Title: "Need a scraper", URL: "https://www.reddit.com/r/x/a", Subreddit: "x"},
		Category: domain.TaskSkillMatch,
	}}})
}

func TestNewWithoutCredentials(t *testing.T) {
	assert.Nil(t, New("", "C0123456789"))
	assert.Nil(t, New("xoxb", "  "))
}

func TestSendToChannelID(t *testing.T) {
	ch, fake := newTestChannel(t, "C0123456789")

	require.NoError(t, ch.Send(context.Background(), testMessage()))

	text := fake.posted["C0123456789"]
	assert.Contains(t, text, "*Found 1 matching tasks*")
	assert.Contains(t, text, "<https://www.reddit.com/r/x/a|Need a scraper>")
	assert.Zero(t, fake.userLists)
}

func TestSendResolvesUserNameOnce(t *testing.T) {
	ch, fake := newTestChannel(t, "@Ally")

	require.NoError(t, ch.Send(context.Background(), testMessage()))
	require.NoError(t, ch.Send(context.Background(), testMessage()))

	assert.Contains(t, fake.posted, "U01ALICE00")
	assert.Equal(t, 1, fake.userLists)
}

func TestSendUnknownUserFails(t *testing.T) {
	ch, fake := newTestChannel(t, "helper")

	err := ch.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Empty(t, fake.posted)
}

func TestIDShapes(t *testing.T) {
	assert.True(t, isLikelySlackID("U01ALICE00"))
	assert.False(t, isLikelySlackID("C0123456789"))
	assert.True(t, isLikelyConversationID("C0123456789"))
	assert.False(t, isLikelyConversationID("alice"))
	assert.False(t, isLikelySlackID("Ulower1234"))
}
