package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/event"
	"github.com/victornm/speedcolor/internal/scoring"
	"github.com/victornm/speedcolor/internal/store"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Records  store.Records
	// Redis throttles leaderboard.updated events across instances. Without it no event is published.
	Redis        redis.UniversalClient
	Prefix       string
	DefaultLimit int
}

type Service struct {
	eb      *event.Bus
	records store.Records
	redis   redis.UniversalClient
	prefix  string
	limit   int
}

func NewService(c Config) *Service {
	limit := c.DefaultLimit
	if limit == 0 {
		limit = scoring.DefaultLimit
	}

	s := &Service{
		eb:      c.EventBus,
		records: c.Records,
		redis:   c.Redis,
		prefix:  c.Prefix,
		limit:   min(max(limit, scoring.MinLimit), scoring.MaxLimit),
	}

	if s.redis != nil {
		s.eb.Subscribe(domain.EventNameRecordCreated, func(ctx context.Context, e event.Event) error {
			return s.UpdateLeaderboard(ctx, e.(domain.EventRecordCreated))
		})
	}

	return s
}

// DefaultLimit is the leaderboard size used when the caller does not ask for one.
func (s *Service) DefaultLimit() int {
	return s.limit
}

type GetLeaderboardRequest struct {
	// Limit is clamped into [1, 100], zero means the default limit.
	Limit int
}

// GetLeaderboard ranks every user having at least one record by their best score.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	limit := req.Limit
	if limit == 0 {
		limit = s.limit
	}
	limit = min(max(limit, scoring.MinLimit), scoring.MaxLimit)

	rows, err := s.records.BestPerUser(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	return &domain.Leaderboard{
		Entries: scoring.Entries(rows),
	}, nil
}

// GetStats aggregates over all records. Any store failure fails the whole call.
func (s *Service) GetStats(ctx context.Context) (*domain.Stats, error) {
	total, err := s.records.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	players, err := s.records.CountPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	top, err := s.records.Top(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	sum, count, err := s.records.ReactionTimeTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	st, err := scoring.Stats(total, players, sum, count, top)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	return &st, nil
}

// UpdateLeaderboard reacts to a new record by scheduling a leaderboard.updated event.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventRecordCreated) error {
	return s.schedulePublishLeaderboard(ctx, e.Record.CreatedAt)
}

// schedulePublishLeaderboard publishes at most one leaderboard per interval. Many records can be
// created in a short time and the leaderboard is only interesting once they settle.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, at time.Time) error {
	// Prevents several instances from publishing the same change, not a strict lock.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(), at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, at)
}

func (s *Service) publishLeaderboard(ctx context.Context, at time.Time) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{})
	if err != nil {
		return fmt.Errorf("publish leaderboard: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.getLeaderboardTimeKey(), at.UnixMilli(), publishInterval).Err()
}

func (s *Service) getLeaderboardTimeKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}
