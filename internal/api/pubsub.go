package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
)

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated publishes the new top results of one difficulty to
// <prefix>:leaderboard:<difficulty>.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard
	return a.publishNotification(ctx, a.channel("leaderboard", l.Difficulty.String()), string(e.Name()), l)
}

// PublishSessionEnded publishes a finished session both to the shared
// <prefix>:sessions channel and to the player's own <prefix>:player:<name>.
func (a *API) PublishSessionEnded(ctx context.Context, e domain.EventSessionEnded) error {
	var eg errgroup.Group
	for _, ch := range []string{
		a.channel("sessions"),
		a.channel("player", e.Result.PlayerName),
	} {
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, string(e.Name()), e)
		})
	}
	return eg.Wait()
}

func (a *API) channel(parts ...string) string {
	ch := a.prefix
	for _, p := range parts {
		ch += ":" + p
	}
	return ch
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
