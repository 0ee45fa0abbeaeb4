package leaderboard_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/event"
	"github.com/victornm/speedcolor/internal/leaderboard"
	"github.com/victornm/speedcolor/internal/store"
)

func TestService_GetLeaderboard(t *testing.T) {
	ctx := context.Background()

	t.Run("should rank users by best score with games played", func(t *testing.T) {
		m := store.NewMemory()
		a := createUser(t, m, "a@example.com")
		b := createUser(t, m, "b@example.com")
		_ = createUser(t, m, "idle@example.com")

		insert(t, m, a, 500, nil)
		insert(t, m, b, 900, nil)
		insert(t, m, b, 300, nil)

		s := makeService(t, withRecords(m))
		l, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Limit: 10})
		require.NoError(t, err)

		require.Len(t, l.Entries, 2)
		assert.Equal(t, "b@example.com", l.Entries[0].User.Email)
		assert.Equal(t, int64(900), l.Entries[0].BestScore)
		assert.Equal(t, int64(2), l.Entries[0].GamesPlayed)
		assert.Equal(t, "a@example.com", l.Entries[1].User.Email)
		assert.Equal(t, int64(500), l.Entries[1].BestScore)
		assert.Equal(t, int64(1), l.Entries[1].GamesPlayed)
	})

	t.Run("scores should be non increasing and limited", func(t *testing.T) {
		m := store.NewMemory()
		for i := 0; i < 30; i++ {
			u := createUser(t, m, fmt.Sprintf("u%d@example.com", i))
			insert(t, m, u, int64((i*37)%11*100), nil)
		}

		s := makeService(t, withRecords(m))
		for _, limit := range []int{0, 1, 5, 500} {
			l, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Limit: limit})
			require.NoError(t, err)

			want := limit
			if limit == 0 {
				want = s.DefaultLimit()
			}
			assert.LessOrEqual(t, len(l.Entries), max(min(want, 100), 1))
			for i := 1; i < len(l.Entries); i++ {
				assert.GreaterOrEqual(t, l.Entries[i-1].BestScore, l.Entries[i].BestScore)
			}
		}
	})

	t.Run("should be idempotent", func(t *testing.T) {
		m := store.NewMemory()
		u := createUser(t, m, "a@example.com")
		insert(t, m, u, 10, nil)

		s := makeService(t, withRecords(m))
		first, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{})
		require.NoError(t, err)
		second, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("store failure should be returned", func(t *testing.T) {
		s := makeService(t, withRecords(failingRecords{store.NewMemory()}))
		_, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{})
		require.Error(t, err)
	})
}

func TestService_GetStats(t *testing.T) {
	ctx := context.Background()

	t.Run("no records", func(t *testing.T) {
		s := makeService(t)
		st, err := s.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &domain.Stats{}, st)
	})

	t.Run("should aggregate all records", func(t *testing.T) {
		m := store.NewMemory()
		a := createUser(t, m, "a@example.com")
		b := createUser(t, m, "b@example.com")
		_ = createUser(t, m, "idle@example.com")

		rt1, rt3 := 100.0, 300.0
		insert(t, m, a, 500, &rt1)
		insert(t, m, b, 900, nil)
		insert(t, m, b, 300, &rt3)

		s := makeService(t, withRecords(m))
		st, err := s.GetStats(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(3), st.TotalGames)
		assert.Equal(t, int64(2), st.TotalPlayers)
		assert.Equal(t, int64(200), st.AverageReactionTime)
		require.NotNil(t, st.HighestScore)
		assert.Equal(t, int64(900), st.HighestScore.Score)
		assert.Equal(t, "b@example.com", st.HighestScore.User.Email)
	})

	t.Run("store failure should be returned", func(t *testing.T) {
		s := makeService(t, withRecords(failingRecords{store.NewMemory()}))
		_, err := s.GetStats(ctx)
		require.Error(t, err)
	})
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventRecordCreated
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	now := time.Now()

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish leaderboard.updated after receiving record.created": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventRecordCreated{
						{Record: domain.Record{Score: 10, CreatedAt: now}, HighScore: 10},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},

		"should publish 1 event leaderboard.updated for records created within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventRecordCreated{
						{Record: domain.Record{Score: 10, CreatedAt: now}, HighScore: 10},
						{Record: domain.Record{Score: 20, CreatedAt: now}, HighScore: 20},
						{Record: domain.Record{Score: 30, CreatedAt: now}, HighScore: 30},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
				withRedis(),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_ShouldSubscribeToRecordCreated(t *testing.T) {
	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published int
	)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(context.Context, event.Event) error {
		mu.Lock()
		published++
		mu.Unlock()
		return nil
	})

	_ = makeService(t, withEventBus(eb), withRedis())

	eb.Publish(context.Background(), domain.EventRecordCreated{Record: domain.Record{CreatedAt: time.Now()}})

	// the record.created handler publishes leaderboard.updated from its own goroutine
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return published == 1
	}, time.Second, 10*time.Millisecond)

	eb.Stop()
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Records:  store.NewMemory(),
		Prefix:   "test",
	}

	for _, opt := range opts {
		opt(t, &c)
	}

	return leaderboard.NewService(c)
}

type options func(t *testing.T, c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(_ *testing.T, c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withRecords(r store.Records) options {
	return func(_ *testing.T, c *leaderboard.Config) {
		c.Records = r
	}
}

func withRedis() options {
	return func(t *testing.T, c *leaderboard.Config) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		rs := miniredis.RunT(t)
		rc := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{rs.Addr()},
		})
		require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

		c.Redis = rc
	}
}

func createUser(t *testing.T, m *store.Memory, email string) string {
	t.Helper()

	u, err := m.CreateUser(context.Background(), domain.User{Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return u.ID
}

func insert(t *testing.T, m *store.Memory, user string, score int64, rt *float64) {
	t.Helper()

	_, err := m.Insert(context.Background(), domain.Record{
		UserID:       user,
		Score:        score,
		GameType:     domain.GameTypeSpeedColor,
		ReactionTime: rt,
		Level:        1,
	})
	require.NoError(t, err)
}

type failingRecords struct {
	*store.Memory
}

var errDown = stderrors.New("database is down")

func (failingRecords) BestPerUser(context.Context, int) ([]domain.UserBest, error) {
	return nil, errDown
}

func (failingRecords) Count(context.Context) (int64, error) {
	return 0, errDown
}
