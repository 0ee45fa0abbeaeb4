package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/scoring"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)

// Memory keeps everything in process. It is safe for concurrent use.
type Memory struct {
	now   func() time.Time
	newID func() (string, error)

	mu      sync.RWMutex
	users   map[string]domain.User
	records []domain.Record
}

type MemoryOption func(m *Memory)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithIDs overrides the ID generator.
func WithIDs(newID func() (string, error)) MemoryOption {
	return func(m *Memory) {
		m.newID = newID
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:   time.Now,
		newID: newUUID,
		users: make(map[string]domain.User),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (*Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) ListByUser(_ context.Context, userID string, limit int) ([]domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []domain.Record
	for _, r := range m.records {
		if r.UserID == userID {
			records = append(records, r)
		}
	}

	slices.SortFunc(records, func(a, b domain.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	if len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (m *Memory) Insert(_ context.Context, r domain.Record) (domain.Record, error) {
	id, err := m.newID()
	if err != nil {
		return domain.Record{}, fmt.Errorf("generate record ID: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[r.UserID]; !ok {
		return domain.Record{}, fmt.Errorf("insert record: unknown user %s", r.UserID)
	}

	r.ID = id
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt
	m.records = append(m.records, r)

	return r, nil
}

func (m *Memory) BestByUser(_ context.Context, userID string) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []domain.Record
	for _, r := range m.records {
		if r.UserID == userID {
			records = append(records, r)
		}
	}

	return scoring.Top(records), nil
}

func (m *Memory) BestPerUser(_ context.Context, limit int) ([]domain.UserBest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return scoring.Rank(m.records, m.summaries(), limit), nil
}

func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.records)), nil
}

func (m *Memory) CountPlayers(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	players := make(map[string]struct{})
	for _, r := range m.records {
		players[r.UserID] = struct{}{}
	}

	return int64(len(players)), nil
}

func (m *Memory) Top(context.Context) (*domain.TopRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := scoring.Top(m.records)
	if r == nil {
		return nil, nil
	}

	u := m.users[r.UserID]
	return &domain.TopRecord{
		Score:        r.Score,
		User:         domain.UserSummary{Name: u.Name, Email: u.Email},
		GameType:     r.GameType,
		ReactionTime: r.ReactionTime,
		Accuracy:     r.Accuracy,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func (m *Memory) ReactionTimeTotals(context.Context) (float64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		sum   float64
		count int64
	)
	for _, r := range m.records {
		if r.ReactionTime != nil {
			sum += *r.ReactionTime
			count++
		}
	}

	return sum, count, nil
}

func (m *Memory) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	id, err := m.newID()
	if err != nil {
		return domain.User{}, fmt.Errorf("generate user ID: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.User{}, ErrEmailTaken
		}
	}

	u.ID = id
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u

	return u, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}

	return nil, nil
}

func (m *Memory) UserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}

	return &u, nil
}

func (m *Memory) summaries() map[string]domain.UserSummary {
	s := make(map[string]domain.UserSummary, len(m.users))
	for id, u := range m.users {
		s[id] = domain.UserSummary{Name: u.Name, Email: u.Email}
	}

	return s
}
