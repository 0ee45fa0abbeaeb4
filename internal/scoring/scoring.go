// Package scoring turns raw game records into the derived views served by the API: the personal
// summary, the leaderboard and the global statistics. Functions in this package do no I/O.
package scoring

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/speedcolor/internal/domain"
)

const (
	// SummaryWindow is the number of most recent records the personal summary looks at.
	SummaryWindow = 50

	DefaultLimit = 10
	MinLimit     = 1
	MaxLimit     = 100

	// MaxReactionTime in milliseconds. A session lasts 30s so no mean reaction gets close.
	MaxReactionTime = 60000

	maxClickPoints = 1000
	minClickPoints = 100
)

// RoundHalfUp rounds d to the nearest integer, halves away from zero. All values rounded here are
// non-negative so this is the usual half-up rule.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Mean returns the rounded arithmetic mean of values, 0 for no values.
func Mean(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromInt(v))
	}

	return RoundHalfUp(sum.Div(decimal.NewFromInt(int64(len(values)))))
}

var (
	ErrNotFinite     = errors.New("scoring: sum is not finite")
	ErrMeanOverflows = errors.New("scoring: mean overflows int64")

	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// MeanFloat returns the rounded mean of count values summing to sum, 0 when count is 0.
func MeanFloat(sum float64, count int64) (int64, error) {
	if count <= 0 {
		return 0, nil
	}

	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotFinite, sum)
	}

	mean := decimal.NewFromFloat(sum).Div(decimal.NewFromInt(count)).Round(0)
	if mean.GreaterThan(maxInt64) || mean.LessThan(minInt64) {
		return 0, fmt.Errorf("%w: %s", ErrMeanOverflows, mean)
	}

	return mean.IntPart(), nil
}

// Summarize builds the personal summary. records must be ordered newest first, so the first record
// found with the maximum score is the newest one.
func Summarize(records []domain.Record) domain.Summary {
	s := domain.Summary{
		Records: records,
		Total:   len(records),
	}
	if s.Records == nil {
		s.Records = []domain.Record{}
	}

	scores := make([]int64, 0, len(records))
	for i := range records {
		if s.Best == nil || records[i].Score > s.Best.Score {
			best := records[i]
			s.Best = &best
		}
		scores = append(scores, records[i].Score)
	}

	s.AverageScore = Mean(scores)
	return s
}

// HighScore returns the score of the user's best record, falling back to the record just created
// when the store has none yet.
func HighScore(best *domain.Record, created domain.Record) int64 {
	if best == nil {
		return created.Score
	}

	return best.Score
}

// ClampLimit parses a requested leaderboard size. Missing, malformed or zero values fall back to
// def, anything else is clamped into [MinLimit, MaxLimit]. Out of range requests are clamped, not
// reset to def: limit=500 asks for as many rows as allowed, so it gets MaxLimit of them.
func ClampLimit(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		n = def
	}

	return min(max(n, MinLimit), MaxLimit)
}

// Rank computes the leaderboard rows from the full record population: one row per user holding the
// user's best record, best scores descending, truncated to limit. Users without records never
// appear. Ties are broken by the lower record ID, both inside a user and between users.
func Rank(records []domain.Record, users map[string]domain.UserSummary, limit int) []domain.UserBest {
	byUser := make(map[string]*domain.UserBest)
	for _, r := range records {
		b, ok := byUser[r.UserID]
		if !ok {
			byUser[r.UserID] = &domain.UserBest{
				User:        users[r.UserID],
				Best:        r,
				GamesPlayed: 1,
			}
			continue
		}

		b.GamesPlayed++
		if better(r, b.Best) {
			b.Best = r
		}
	}

	rows := make([]domain.UserBest, 0, len(byUser))
	for _, b := range byUser {
		rows = append(rows, *b)
	}

	slices.SortFunc(rows, func(a, b domain.UserBest) int {
		if c := cmp.Compare(b.Best.Score, a.Best.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Best.ID, b.Best.ID)
	})

	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	return rows
}

// Top returns the highest scoring record, lowest ID on ties, or nil for no records.
func Top(records []domain.Record) *domain.Record {
	var top *domain.Record
	for i := range records {
		if top == nil || better(records[i], *top) {
			r := records[i]
			top = &r
		}
	}

	return top
}

func better(r, than domain.Record) bool {
	return r.Score > than.Score || (r.Score == than.Score && r.ID < than.ID)
}

// Entries maps leaderboard rows to their public form.
func Entries(rows []domain.UserBest) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:       r.Best.UserID,
			User:         r.User,
			BestScore:    r.Best.Score,
			GamesPlayed:  r.GamesPlayed,
			GameType:     r.Best.GameType,
			ReactionTime: r.Best.ReactionTime,
			Accuracy:     r.Best.Accuracy,
			AchievedAt:   r.Best.CreatedAt,
		})
	}

	return entries
}

// Stats assembles the global statistics. rtSum and rtCount only cover records that carry a reaction
// time.
func Stats(totalGames, totalPlayers int64, rtSum float64, rtCount int64, top *domain.TopRecord) (domain.Stats, error) {
	avg, err := MeanFloat(rtSum, rtCount)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("average reaction time: %w", err)
	}

	return domain.Stats{
		TotalGames:          totalGames,
		TotalPlayers:        totalPlayers,
		AverageReactionTime: avg,
		HighestScore:        top,
	}, nil
}

// Accuracy is the percentage of correct clicks, 0 when nothing was clicked.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}

	return float64(correct) / float64(total) * 100
}

// ClickPoints is the score of a correct click: faster reactions earn more, never less than the floor.
func ClickPoints(reaction time.Duration) int64 {
	return max(maxClickPoints-reaction.Milliseconds(), minClickPoints)
}
