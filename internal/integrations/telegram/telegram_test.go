package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskradar/internal/domain"
	"taskradar/internal/notify"
)

func posts(n int) []domain.EnrichedPost {
	out := make([]domain.EnrichedPost, n)
	for i := range out {
		id := fmt.Sprintf("p%d", i)
		out[i] = domain.EnrichedPost{TaskResult: domain.TaskResult{
			Post:     domain.Post{ID: id, Title: "Task " + id, URL: "https://www.reddit.com/r/x/" + id, Subreddit: "x"},
			Category: domain.TaskSkillMatch,
		}}
	}
	return out
}

type recorder struct {
	mu       sync.Mutex
	requests []sendMessageRequest
	failOn   int
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", req.URL.Path)
		var body sendMessageRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		r.mu.Lock()
		r.requests = append(r.requests, body)
		n := len(r.requests)
		r.mu.Unlock()
		if n == r.failOn {
			http.Error(w, `{"ok":false}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
}

func TestNewRequiresCredentials(t *testing.T) {
	assert.Nil(t, New("", "1"))
	assert.Nil(t, New("TOKEN", ""))
}

func TestSendPerPostMessages(t *testing.T) {
	rec := &recorder{}
	server := rec.server(t)
	defer server.Close()

	ch := New("TOKEN", "42").WithAPIBase(server.URL + "/")
	require.NoError(t, ch.Send(context.Background(), notify.NewMessage(posts(2))))

	require.Len(t, rec.requests, 2)
	assert.Equal(t, "42", rec.requests[0].ChatID)
	assert.Equal(t, "HTML", rec.requests[0].ParseMode)
	assert.True(t, rec.requests[0].DisableWebPagePreview)
	assert.Contains(t, rec.requests[1].Text, "<b>Task p1</b>")
}

func TestSendDigestForLargerBatches(t *testing.T) {
	rec := &recorder{}
	server := rec.server(t)
	defer server.Close()

	ch := New("TOKEN", "42").WithAPIBase(server.URL)
	require.NoError(t, ch.Send(context.Background(), notify.NewMessage(posts(5))))

	require.Len(t, rec.requests, 1)
	assert.Contains(t, rec.requests[0].Text, "<b>Found 5 matching tasks</b>")
}

func TestSendPartialFailureStillSucceeds(t *testing.T) {
	rec := &recorder{failOn: 1}
	server := rec.server(t)
	defer server.Close()

	ch := New("TOKEN", "42").WithAPIBase(server.URL)
	assert.NoError(t, ch.Send(context.Background(), notify.NewMessage(posts(2))))
}

func TestSendAllFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	ch := New("TOKEN", "42").WithAPIBase(server.URL)
	err := ch.Send(context.Background(), notify.NewMessage(posts(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
