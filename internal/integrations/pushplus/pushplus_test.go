package pushplus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskradar/internal/domain"
	"taskradar/internal/notify"
)

func message() notify.Message {
	return notify.NewMessage([]domain.EnrichedPost{{TaskResult: domain.TaskResult{
		Post:     domain.Post{ID: "a", Title: "Need a bot", URL: "https://www.reddit.com/r/x/a", Subreddit: "x"},
		Category: domain.TaskSkillMatch,
	}}})
}

func TestSendPostsHTMLTemplate(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"code":200,"msg":"ok"}`)
	}))
	defer server.Close()

	ch := New("tok").WithEndpoint(server.URL)
	require.NoError(t, ch.Send(context.Background(), message()))

	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "1 new Reddit tasks", got.Title)
	assert.Equal(t, "html", got.Template)
	assert.Contains(t, got.Content, "<h2>Found 1 matching tasks</h2>")
}

func TestSendNon200CodeFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":903,"msg":"invalid token"}`)
	}))
	defer server.Close()

	err := New("bad").WithEndpoint(server.URL).Send(context.Background(), message())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestNewWithoutToken(t *testing.T) {
	assert.Nil(t, New(""))
}
