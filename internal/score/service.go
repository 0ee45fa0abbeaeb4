package score

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/event"
	"github.com/victornm/speedcolor/internal/scoring"
	"github.com/victornm/speedcolor/internal/store"
)

type Config struct {
	EventBus *event.Bus
	Records  store.Records
}

type Service struct {
	eb      *event.Bus
	records store.Records
}

func NewService(c Config) *Service {
	return &Service{
		eb:      c.EventBus,
		records: c.Records,
	}
}

// Summary returns the best record, history and average score over the most recent records of
// a user. Total and AverageScore only cover that window.
func (s *Service) Summary(ctx context.Context, userID string) (*domain.Summary, error) {
	records, err := s.records.ListByUser(ctx, userID, scoring.SummaryWindow)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	sum := scoring.Summarize(records)
	return &sum, nil
}

// CreateRecordRequest is already validated by the caller. Zero values of GameType and Level
// are replaced by their defaults.
type CreateRecordRequest struct {
	UserID       string
	Score        int64
	GameType     string
	ReactionTime *float64
	Level        int
	Accuracy     *float64
}

type CreateRecordResponse struct {
	Created   domain.Record
	HighScore int64
}

// CreateRecord stores a finished game and returns it with the user's all time high score.
func (s *Service) CreateRecord(ctx context.Context, req CreateRecordRequest) (*CreateRecordResponse, error) {
	r := domain.Record{
		UserID:       req.UserID,
		Score:        req.Score,
		GameType:     req.GameType,
		ReactionTime: req.ReactionTime,
		Level:        req.Level,
		Accuracy:     req.Accuracy,
	}
	if r.GameType == "" {
		r.GameType = domain.GameTypeSpeedColor
	}
	if r.Level == 0 {
		r.Level = 1
	}

	created, err := s.records.Insert(ctx, r)
	if err != nil {
		return nil, err
	}

	// The record is stored already, failing here would make a retrying client insert it twice.
	best, err := s.records.BestByUser(ctx, req.UserID)
	if err != nil {
		slog.WarnContext(ctx, "score: read high score failed, using the created record",
			"user_id", req.UserID,
			"error", err,
		)
		best = nil
	}

	resp := &CreateRecordResponse{
		Created:   created,
		HighScore: scoring.HighScore(best, created),
	}

	s.eb.Publish(ctx, domain.EventRecordCreated{
		Record:    resp.Created,
		HighScore: resp.HighScore,
	})

	return resp, nil
}
