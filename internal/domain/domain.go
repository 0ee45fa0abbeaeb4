package domain

import "time"

// GameTypeSpeedColor is the only game type the client currently submits.
const GameTypeSpeedColor = "speed_color"

// User is an account able to submit records.
type User struct {
	ID           string
	Email        string
	Name         *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public part of a user shown next to scores.
type UserSummary struct {
	Name  *string
	Email string
}

// Record is the result of one finished game session. Records are never updated.
type Record struct {
	ID           string
	UserID       string
	Score        int64
	GameType     string
	ReactionTime *float64
	Level        int
	Accuracy     *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the personal view over the most recent records of a user.
type Summary struct {
	Best         *Record
	Records      []Record
	Total        int
	AverageScore int64
}

// UserBest is the highest scoring record of a user together with the number of records
// the user has submitted in total.
type UserBest struct {
	User        UserSummary
	Best        Record
	GamesPlayed int64
}

// Leaderboard is sorted by best score in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID       string
	User         UserSummary
	BestScore    int64
	GamesPlayed  int64
	GameType     string
	ReactionTime *float64
	Accuracy     *float64
	AchievedAt   time.Time
}

// TopRecord is the highest scoring record across all users.
type TopRecord struct {
	Score        int64
	User         UserSummary
	GameType     string
	ReactionTime *float64
	Accuracy     *float64
	CreatedAt    time.Time
}

type Stats struct {
	TotalGames          int64
	TotalPlayers        int64
	AverageReactionTime int64
	HighestScore        *TopRecord
}
