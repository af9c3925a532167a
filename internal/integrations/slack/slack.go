// Package slackbot posts notification digests to Slack.
package slackbot

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"taskradar/internal/notify"
)

type Channel struct {
	api    *slack.Client
	target string
	users  *userCache
}

// New returns nil when the bot token or target is missing. target may be a
// channel ID, a #channel name, a user ID, or a user's name.
func New(token, target string, opts ...slack.Option) *Channel {
	target = strings.TrimSpace(target)
	if token == "" || target == "" {
		return nil
	}
	return &Channel{
		api:    slack.New(token, opts...),
		target: target,
		users:  &userCache{},
	}
}

func (c *Channel) Name() string { return "slack" }

func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	channelID, err := c.resolveTarget(ctx)
	if err != nil {
		return err
	}
	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(notify.FormatSlack(msg), false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	log.Printf("slack posted channel=%s ts=%s posts=%d", channelID, ts, len(msg.Posts))
	return nil
}

func (c *Channel) resolveTarget(ctx context.Context) (string, error) {
	if strings.HasPrefix(c.target, "#") || isLikelyConversationID(c.target) || isLikelySlackID(c.target) {
		return c.target, nil
	}
	id, err := c.users.lookup(ctx, c.api, c.target)
	if err != nil {
		return "", fmt.Errorf("resolve slack user %q: %w", c.target, err)
	}
	return id, nil
}
