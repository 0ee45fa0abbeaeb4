package scoring_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/scoring"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		arrange func() []domain.Record
		assert  func(t *testing.T, s domain.Summary)
	}{
		"empty records should give an empty summary": {
			arrange: func() []domain.Record { return nil },
			assert: func(t *testing.T, s domain.Summary) {
				assert.Nil(t, s.Best)
				assert.NotNil(t, s.Records)
				assert.Empty(t, s.Records)
				assert.Zero(t, s.Total)
				assert.Zero(t, s.AverageScore)
			},
		},

		"best should be the maximum score": {
			arrange: func() []domain.Record {
				return []domain.Record{
					record("r3", "u1", 300, now.Add(2*time.Minute)),
					record("r2", "u1", 900, now.Add(time.Minute)),
					record("r1", "u1", 500, now),
				}
			},
			assert: func(t *testing.T, s domain.Summary) {
				require.NotNil(t, s.Best)
				assert.Equal(t, "r2", s.Best.ID)
				assert.Equal(t, 3, s.Total)
				assert.Equal(t, int64(567), s.AverageScore)
			},
		},

		"newest record should win a tie on the best score": {
			arrange: func() []domain.Record {
				return []domain.Record{
					record("r3", "u1", 700, now.Add(2*time.Minute)),
					record("r2", "u1", 700, now.Add(time.Minute)),
					record("r1", "u1", 100, now),
				}
			},
			assert: func(t *testing.T, s domain.Summary) {
				require.NotNil(t, s.Best)
				assert.Equal(t, "r3", s.Best.ID)
			},
		},

		"average should round half up": {
			arrange: func() []domain.Record {
				return []domain.Record{
					record("r2", "u1", 2, now.Add(time.Minute)),
					record("r1", "u1", 1, now),
				}
			},
			assert: func(t *testing.T, s domain.Summary) {
				assert.Equal(t, int64(2), s.AverageScore)
			},
		},

		"records should be returned unmodified": {
			arrange: func() []domain.Record {
				return []domain.Record{
					record("r2", "u1", 10, now.Add(time.Minute)),
					record("r1", "u1", 20, now),
				}
			},
			assert: func(t *testing.T, s domain.Summary) {
				require.Len(t, s.Records, 2)
				assert.Equal(t, "r2", s.Records[0].ID)
				assert.Equal(t, "r1", s.Records[1].ID)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tt.assert(t, scoring.Summarize(tt.arrange()))
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[string]struct {
		raw  string
		def  int
		want int
	}{
		"missing":     {raw: "", def: 10, want: 10},
		"zero":        {raw: "0", def: 10, want: 10},
		"non numeric": {raw: "ten", def: 10, want: 10},
		"fraction":    {raw: "2.5", def: 10, want: 10},
		"in range":    {raw: "25", def: 10, want: 25},
		"too large":   {raw: "500", def: 10, want: 100},
		"negative":    {raw: "-3", def: 10, want: 1},
		"bad default": {raw: "", def: 1000, want: 100},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scoring.ClampLimit(tt.raw, tt.def))
		})
	}
}

func TestRank(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	users := map[string]domain.UserSummary{
		"a": {Email: "a@example.com"},
		"b": {Email: "b@example.com"},
		"c": {Email: "c@example.com"},
	}

	t.Run("should keep one best row per user in descending order", func(t *testing.T) {
		records := []domain.Record{
			record("r1", "a", 500, now),
			record("r2", "b", 900, now.Add(time.Second)),
			record("r3", "b", 300, now.Add(2*time.Second)),
		}

		rows := scoring.Rank(records, users, 10)
		require.Len(t, rows, 2)

		assert.Equal(t, "b@example.com", rows[0].User.Email)
		assert.Equal(t, int64(900), rows[0].Best.Score)
		assert.Equal(t, int64(2), rows[0].GamesPlayed)

		assert.Equal(t, "a@example.com", rows[1].User.Email)
		assert.Equal(t, int64(500), rows[1].Best.Score)
		assert.Equal(t, int64(1), rows[1].GamesPlayed)
	})

	t.Run("should break ties by lower record id", func(t *testing.T) {
		records := []domain.Record{
			record("r4", "a", 700, now),
			record("r2", "a", 700, now),
			record("r3", "c", 700, now),
		}

		rows := scoring.Rank(records, users, 10)
		require.Len(t, rows, 2)
		assert.Equal(t, "r2", rows[0].Best.ID)
		assert.Equal(t, "r3", rows[1].Best.ID)
	})

	t.Run("should truncate to limit", func(t *testing.T) {
		records := []domain.Record{
			record("r1", "a", 1, now),
			record("r2", "b", 2, now),
			record("r3", "c", 3, now),
		}

		rows := scoring.Rank(records, users, 2)
		require.Len(t, rows, 2)
		assert.Equal(t, int64(3), rows[0].Best.Score)
		assert.Equal(t, int64(2), rows[1].Best.Score)
	})

	t.Run("should be empty for no records", func(t *testing.T) {
		assert.Empty(t, scoring.Rank(nil, users, 10))
	})
}

func TestEntries(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rt, acc := 250.0, 90.0

	got := scoring.Entries([]domain.UserBest{{
		User: domain.UserSummary{Email: "a@example.com"},
		Best: domain.Record{
			ID:           "r1",
			UserID:       "a",
			Score:        800,
			GameType:     domain.GameTypeSpeedColor,
			ReactionTime: &rt,
			Accuracy:     &acc,
			CreatedAt:    at,
		},
		GamesPlayed: 4,
	}})

	want := []domain.LeaderboardEntry{{
		UserID:       "a",
		User:         domain.UserSummary{Email: "a@example.com"},
		BestScore:    800,
		GamesPlayed:  4,
		GameType:     domain.GameTypeSpeedColor,
		ReactionTime: &rt,
		Accuracy:     &acc,
		AchievedAt:   at,
	}}
	assert.Equal(t, want, got)
}

func TestStats(t *testing.T) {
	t.Run("average reaction time should only count present values", func(t *testing.T) {
		// reaction times [100, null, 300]
		s, err := scoring.Stats(3, 1, 400, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(200), s.AverageReactionTime)
		assert.Equal(t, int64(3), s.TotalGames)
		assert.Nil(t, s.HighestScore)
	})

	t.Run("average reaction time should be 0 without values", func(t *testing.T) {
		s, err := scoring.Stats(2, 1, 0, 0, nil)
		require.NoError(t, err)
		assert.Zero(t, s.AverageReactionTime)
	})

	t.Run("average reaction time should round half up", func(t *testing.T) {
		s, err := scoring.Stats(2, 1, 301, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(151), s.AverageReactionTime)
	})

	t.Run("overflowing reaction times should fail", func(t *testing.T) {
		rt := 1.7e308
		_, err := scoring.Stats(2, 1, rt+rt, 2, nil)
		require.ErrorIs(t, err, scoring.ErrNotFinite)
	})
}

func TestMeanFloat(t *testing.T) {
	tests := map[string]struct {
		sum     float64
		count   int64
		want    int64
		wantErr error
	}{
		"no values":         {sum: 0, count: 0, want: 0},
		"half rounds up":    {sum: 301, count: 2, want: 151},
		"largest reaction":  {sum: 2 * scoring.MaxReactionTime, count: 2, want: scoring.MaxReactionTime},
		"infinite sum":      {sum: math.Inf(1), count: 2, wantErr: scoring.ErrNotFinite},
		"nan sum":           {sum: math.NaN(), count: 1, wantErr: scoring.ErrNotFinite},
		"mean beyond int64": {sum: 1e300, count: 1, wantErr: scoring.ErrMeanOverflows},
		"negative beyond":   {sum: -1e300, count: 1, wantErr: scoring.ErrMeanOverflows},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := scoring.MeanFloat(tt.sum, tt.count)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTop(t *testing.T) {
	now := time.Now()
	assert.Nil(t, scoring.Top(nil))

	top := scoring.Top([]domain.Record{
		record("r2", "a", 10, now),
		record("r1", "b", 10, now),
		record("r3", "c", 5, now),
	})
	require.NotNil(t, top)
	assert.Equal(t, "r1", top.ID)
}

func TestClickPoints(t *testing.T) {
	assert.Equal(t, int64(800), scoring.ClickPoints(200*time.Millisecond))
	assert.Equal(t, int64(600), scoring.ClickPoints(400*time.Millisecond))
	assert.Equal(t, int64(100), scoring.ClickPoints(950*time.Millisecond))
	assert.Equal(t, int64(100), scoring.ClickPoints(3*time.Second))
}

func TestAccuracy(t *testing.T) {
	assert.Zero(t, scoring.Accuracy(0, 0))
	assert.InDelta(t, 66.6666, scoring.Accuracy(2, 3), 0.001)
	assert.Equal(t, 100.0, scoring.Accuracy(4, 4))
}

func TestMean(t *testing.T) {
	assert.Zero(t, scoring.Mean(nil))
	assert.Equal(t, int64(300), scoring.Mean([]int64{200, 400}))
	assert.Equal(t, int64(2), scoring.Mean([]int64{1, 2}))
	assert.Equal(t, int64(1), scoring.Mean([]int64{1, 1, 2}))
}

func TestHighScore(t *testing.T) {
	created := domain.Record{Score: 40}
	assert.Equal(t, int64(40), scoring.HighScore(nil, created))
	assert.Equal(t, int64(90), scoring.HighScore(&domain.Record{Score: 90}, created))
}

func record(id, user string, score int64, at time.Time) domain.Record {
	return domain.Record{
		ID:        id,
		UserID:    user,
		Score:     score,
		GameType:  domain.GameTypeSpeedColor,
		Level:     1,
		CreatedAt: at,
		UpdatedAt: at,
	}
}
