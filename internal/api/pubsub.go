package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/speedcolor/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	RecordCreated struct {
		Score     int64 `json:"score"`
		HighScore int64 `json:"highScore"`
	}
)

// PublishRecordCreated tells the owner of the record about it on their own channel.
func (a *API) PublishRecordCreated(ctx context.Context, e domain.EventRecordCreated) error {
	data := RecordCreated{
		Score:     e.Record.Score,
		HighScore: e.HighScore,
	}

	return a.publishNotification(ctx, a.UserChannel(e.Record.UserID), e.Name(), data)
}

// PublishLeaderboardUpdated broadcasts the leaderboard and also sends it to every ranked user.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publishNotification(ctx, a.LeaderboardChannel(), e.Name(), data)
	})

	for _, entry := range e.Leaderboard.Entries {
		if entry.UserID == "" {
			continue
		}

		eg.Go(func() error {
			return a.publishNotification(ctx, a.UserChannel(entry.UserID), e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) UserChannel(userID string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, userID)
}

func (a *API) LeaderboardChannel() string {
	return fmt.Sprintf("%s:leaderboard", a.prefix)
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
