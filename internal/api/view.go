package api

import (
	"time"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/user"
)

type (
	RegisterRequest struct {
		Email    string  `json:"email" binding:"required,email"`
		Password string  `json:"password" binding:"required,min=6"`
		Name     *string `json:"name,omitempty" binding:"omitnil,min=1,max=80"`
	}

	LoginRequest struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	AuthResponse struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}

	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Name      *string   `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	CreateRecordRequest struct {
		Score        *int64   `json:"score" binding:"required,min=0"`
		GameType     *string  `json:"gameType,omitempty" binding:"omitnil,min=1"`
		ReactionTime *float64 `json:"reactionTime,omitempty" binding:"omitnil,min=0,max=60000"`
		Level        *int     `json:"level,omitempty" binding:"omitnil,min=1"`
		Accuracy     *float64 `json:"accuracy,omitempty" binding:"omitnil,min=0,max=100"`
	}

	CreateRecordResponse struct {
		Created   Record `json:"created"`
		HighScore int64  `json:"highScore"`
	}

	Record struct {
		ID           string    `json:"id"`
		UserID       string    `json:"userId"`
		Score        int64     `json:"score"`
		GameType     string    `json:"gameType"`
		ReactionTime *float64  `json:"reactionTime"`
		Level        int       `json:"level"`
		Accuracy     *float64  `json:"accuracy"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	Summary struct {
		Best         *Record  `json:"best"`
		Records      []Record `json:"records"`
		Total        int      `json:"total"`
		AverageScore int64    `json:"averageScore"`
	}

	UserSummary struct {
		Name  *string `json:"name"`
		Email string  `json:"email"`
	}

	LeaderboardEntry struct {
		User         UserSummary `json:"user"`
		BestScore    int64       `json:"bestScore"`
		GamesPlayed  int64       `json:"gamesPlayed"`
		GameType     string      `json:"gameType"`
		ReactionTime *float64    `json:"reactionTime"`
		Accuracy     *float64    `json:"accuracy"`
		AchievedAt   time.Time   `json:"achievedAt"`
	}

	Stats struct {
		TotalGames          int64      `json:"totalGames"`
		TotalPlayers        int64      `json:"totalPlayers"`
		AverageReactionTime int64      `json:"averageReactionTime"`
		HighestScore        *TopRecord `json:"highestScore"`
	}

	TopRecord struct {
		Score        int64       `json:"score"`
		User         UserSummary `json:"user"`
		GameType     string      `json:"gameType"`
		ReactionTime *float64    `json:"reactionTime"`
		Accuracy     *float64    `json:"accuracy"`
		CreatedAt    time.Time   `json:"createdAt"`
	}
)

func toAuthResponse(r *user.AuthResponse) AuthResponse {
	return AuthResponse{
		Token: r.Token,
		User:  toUser(r.User),
	}
}

// toUser never exposes the password hash.
func toUser(u domain.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

func toRecord(r domain.Record) Record {
	return Record{
		ID:           r.ID,
		UserID:       r.UserID,
		Score:        r.Score,
		GameType:     r.GameType,
		ReactionTime: r.ReactionTime,
		Level:        r.Level,
		Accuracy:     r.Accuracy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toSummary(s domain.Summary) Summary {
	resp := Summary{
		Records:      make([]Record, 0, len(s.Records)),
		Total:        s.Total,
		AverageScore: s.AverageScore,
	}

	if s.Best != nil {
		best := toRecord(*s.Best)
		resp.Best = &best
	}

	for _, r := range s.Records {
		resp.Records = append(resp.Records, toRecord(r))
	}

	return resp
}

func toUserSummary(u domain.UserSummary) UserSummary {
	return UserSummary{Name: u.Name, Email: u.Email}
}

func toLeaderboard(l domain.Leaderboard) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, LeaderboardEntry{
			User:         toUserSummary(e.User),
			BestScore:    e.BestScore,
			GamesPlayed:  e.GamesPlayed,
			GameType:     e.GameType,
			ReactionTime: e.ReactionTime,
			Accuracy:     e.Accuracy,
			AchievedAt:   e.AchievedAt,
		})
	}

	return entries
}

func toStats(s domain.Stats) Stats {
	resp := Stats{
		TotalGames:          s.TotalGames,
		TotalPlayers:        s.TotalPlayers,
		AverageReactionTime: s.AverageReactionTime,
	}

	if t := s.HighestScore; t != nil {
		resp.HighestScore = &TopRecord{
			Score:        t.Score,
			User:         toUserSummary(t.User),
			GameType:     t.GameType,
			ReactionTime: t.ReactionTime,
			Accuracy:     t.Accuracy,
			CreatedAt:    t.CreatedAt,
		}
	}

	return resp
}
