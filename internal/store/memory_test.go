package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/store"
)

func TestMemory_Users(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	u, err := m.CreateUser(ctx, domain.User{Email: "a@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = m.CreateUser(ctx, domain.User{Email: "a@example.com", PasswordHash: "y"})
	require.ErrorIs(t, err, store.ErrEmailTaken)

	got, err := m.UserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	got, err = m.UserByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_Records(t *testing.T) {
	ctx := context.Background()
	m := makeMemory()

	a := createUser(t, m, "a@example.com")
	b := createUser(t, m, "b@example.com")
	_ = createUser(t, m, "idle@example.com")

	rt := 120.0
	insert(t, m, a, 500, &rt)
	insert(t, m, b, 900, nil)
	insert(t, m, b, 300, nil)

	t.Run("list should be newest first and limited", func(t *testing.T) {
		records, err := m.ListByUser(ctx, b, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(300), records[0].Score)
	})

	t.Run("best by user should cover the whole history", func(t *testing.T) {
		best, err := m.BestByUser(ctx, b)
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, int64(900), best.Score)

		best, err = m.BestByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, best)
	})

	t.Run("best per user should skip users without records", func(t *testing.T) {
		rows, err := m.BestPerUser(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "b@example.com", rows[0].User.Email)
		assert.Equal(t, int64(2), rows[0].GamesPlayed)
		assert.Equal(t, "a@example.com", rows[1].User.Email)
	})

	t.Run("aggregates", func(t *testing.T) {
		n, err := m.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		players, err := m.CountPlayers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), players)

		sum, count, err := m.ReactionTimeTotals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 120.0, sum)
		assert.Equal(t, int64(1), count)

		top, err := m.Top(ctx)
		require.NoError(t, err)
		require.NotNil(t, top)
		assert.Equal(t, int64(900), top.Score)
		assert.Equal(t, "b@example.com", top.User.Email)
	})

	t.Run("insert should reject unknown users", func(t *testing.T) {
		_, err := m.Insert(ctx, domain.Record{UserID: "nobody", Score: 1})
		require.Error(t, err)
	})
}

func makeMemory() *store.Memory {
	var (
		clock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		seq   int
	)

	return store.NewMemory(
		store.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		store.WithIDs(func() (string, error) {
			seq++
			return fmt.Sprintf("id-%04d", seq), nil
		}),
	)
}

func createUser(t *testing.T, m *store.Memory, email string) string {
	t.Helper()

	u, err := m.CreateUser(context.Background(), domain.User{Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return u.ID
}

func insert(t *testing.T, m *store.Memory, user string, score int64, rt *float64) domain.Record {
	t.Helper()

	r, err := m.Insert(context.Background(), domain.Record{
		UserID:       user,
		Score:        score,
		GameType:     domain.GameTypeSpeedColor,
		ReactionTime: rt,
		Level:        1,
	})
	require.NoError(t, err)
	return r
}
