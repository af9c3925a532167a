// Package notify delivers newly qualifying posts to the configured
// channels, at most once per post ID.
package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"taskradar/internal/domain"
	"taskradar/internal/metrics"
)

const channelTimeout = 10 * time.Second

// Channel is one delivery transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Ledger is the notified set the coordinator consults. *ledger.Ledger
// satisfies it.
type Ledger interface {
	FilterAndMark(ctx context.Context, ids []string) ([]string, error)
}

type ChannelResult struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Outcome reports one Notify call. Delivered is true when at least one
// channel accepted the message.
type Outcome struct {
	Eligible  int             `json:"eligible"`
	New       []string        `json:"new_ids"`
	Delivered bool            `json:"delivered"`
	Channels  []ChannelResult `json:"channels,omitempty"`
}

type Coordinator struct {
	ledger   Ledger
	channels []Channel
}

func NewCoordinator(ledger Ledger, channels ...Channel) *Coordinator {
	var active []Channel
	for _, ch := range channels {
		if ch != nil {
			active = append(active, ch)
		}
	}
	return &Coordinator{ledger: ledger, channels: active}
}

func (c *Coordinator) Channels() []string {
	names := make([]string, len(c.channels))
	for i, ch := range c.channels {
		names[i] = ch.Name()
	}
	return names
}

// Notify selects skill and maybe matches not yet notified, marks them, and
// dispatches one message to every channel. IDs are marked before dispatch,
// so a failed delivery is not retried on the next cycle.
func (c *Coordinator) Notify(ctx context.Context, posts []domain.EnrichedPost) (Outcome, error) {
	var eligible []domain.EnrichedPost
	var ids []string
	for _, p := range posts {
		if p.EffectiveCategory().Notifiable() {
			eligible = append(eligible, p)
			ids = append(ids, p.ID)
		}
	}
	out := Outcome{Eligible: len(eligible)}
	if len(ids) == 0 {
		return out, nil
	}

	fresh, err := c.ledger.FilterAndMark(ctx, ids)
	if err != nil {
		return out, fmt.Errorf("filter notified posts: %w", err)
	}
	out.New = fresh
	if len(fresh) == 0 {
		log.Printf("notify skipped: %d eligible posts already notified", len(eligible))
		return out, nil
	}
	metrics.PostsNotified.Add(float64(len(fresh)))

	keep := make(map[string]bool, len(fresh))
	for _, id := range fresh {
		keep[id] = true
	}
	var batch []domain.EnrichedPost
	for _, p := range eligible {
		if keep[p.ID] {
			batch = append(batch, p)
			delete(keep, p.ID)
		}
	}

	if len(c.channels) == 0 {
		log.Printf("notify: no notification channel configured, %d posts marked", len(batch))
		return out, nil
	}

	out.Channels = c.dispatch(ctx, NewMessage(batch))
	for _, r := range out.Channels {
		if r.OK {
			out.Delivered = true
		}
	}
	log.Printf("notify done posts=%d channels=%d delivered=%t", len(batch), len(c.channels), out.Delivered)
	return out, nil
}

// dispatch sends msg on every channel concurrently. A failing channel
// never stops the others.
func (c *Coordinator) dispatch(ctx context.Context, msg Message) []ChannelResult {
	results := make([]ChannelResult, len(c.channels))
	var g errgroup.Group
	for i, ch := range c.channels {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, channelTimeout)
			defer cancel()
			r := ChannelResult{Channel: ch.Name(), OK: true}
			if err := ch.Send(sendCtx, msg); err != nil {
				r.OK = false
				r.Error = err.Error()
				log.Printf("notify channel=%s failed: %v", ch.Name(), err)
				metrics.NotificationsSent.WithLabelValues(ch.Name(), "error").Inc()
			} else {
				metrics.NotificationsSent.WithLabelValues(ch.Name(), "ok").Inc()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}
