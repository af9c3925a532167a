package slackbot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

const userCacheTTL = 5 * time.Minute

type userCache struct {
	sync.Mutex
	byName    map[string]string
	fetchedAt time.Time
}

// lookup maps a username, real name or display name to a user ID,
// refreshing the workspace directory at most once per TTL.
func (u *userCache) lookup(ctx context.Context, api *slack.Client, name string) (string, error) {
	u.Lock()
	defer u.Unlock()

	if u.byName == nil || time.Since(u.fetchedAt) >= userCacheTTL {
		users, err := api.GetUsersContext(ctx)
		if err != nil {
			return "", err
		}
		u.byName = indexUsers(users)
		u.fetchedAt = time.Now()
		log.Printf("slack users cached count=%d", len(users))
	}

	if id, ok := u.byName[normalizeName(name)]; ok {
		return id, nil
	}
	return "", fmt.Errorf("no user named %q", name)
}

func indexUsers(users []slack.User) map[string]string {
	byName := make(map[string]string)
	for _, user := range users {
		if user.Deleted || user.IsBot {
			continue
		}
		for _, n := range []string{user.Name, user.RealName, user.Profile.DisplayName} {
			n = normalizeName(n)
			if n == "" {
				continue
			}
			if _, exists := byName[n]; !exists {
				byName[n] = user.ID
			}
		}
	}
	return byName
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "@")))
}

func isLikelySlackID(val string) bool {
	return hasIDShape(val, 'U', 'W')
}

func isLikelyConversationID(val string) bool {
	return hasIDShape(val, 'C', 'G', 'D')
}

func hasIDShape(val string, prefixes ...rune) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			ok := false
			for _, p := range prefixes {
				if r == p {
					ok = true
				}
			}
			if !ok {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
