package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/speedcolor/internal/domain"
)

const codeUniqueViolation = "23505"

const recordColumns = `id, user_id, score, game_type, reaction_time, level, accuracy, create_time, update_time`

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// EnsureSchema creates missing tables and indexes.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

func (p *Postgres) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Record, error) {
	const stmt = `
SELECT ` + recordColumns + `
FROM records
WHERE user_id = $1
ORDER BY create_time DESC, id DESC
LIMIT $2;`

	rows, err := p.db.Query(ctx, stmt, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Record, error) {
		return scanRecord(r)
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	return records, nil
}

func (p *Postgres) Insert(ctx context.Context, r domain.Record) (domain.Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Record{}, fmt.Errorf("generate record ID: %w", err)
	}

	const stmt = `
INSERT INTO records (id, user_id, score, game_type, reaction_time, level, accuracy)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING create_time, update_time;`

	err = p.db.QueryRow(ctx, stmt, id, r.UserID, r.Score, r.GameType, r.ReactionTime, r.Level, r.Accuracy).
		Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Record{}, fmt.Errorf("insert record: %w", err)
	}

	r.ID = id.String()
	return r, nil
}

func (p *Postgres) BestByUser(ctx context.Context, userID string) (*domain.Record, error) {
	const stmt = `
SELECT ` + recordColumns + `
FROM records
WHERE user_id = $1
ORDER BY score DESC, id ASC
LIMIT 1;`

	r, err := scanRecord(p.db.QueryRow(ctx, stmt, userID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("best record: %w", err)
	}

	return &r, nil
}

// BestPerUser ranks users in a single query. Window functions run before DISTINCT ON, so
// games_played counts every record of the user, not only the kept one.
func (p *Postgres) BestPerUser(ctx context.Context, limit int) ([]domain.UserBest, error) {
	const stmt = `
WITH best AS (
	SELECT DISTINCT ON (user_id)
		` + recordColumns + `,
		COUNT(*) OVER (PARTITION BY user_id) AS games_played
	FROM records
	ORDER BY user_id, score DESC, id ASC
)
SELECT b.id, b.user_id, b.score, b.game_type, b.reaction_time, b.level, b.accuracy, b.create_time, b.update_time,
	b.games_played, u.name, u.email
FROM best b
JOIN users u ON u.id = b.user_id
ORDER BY b.score DESC, b.id ASC
LIMIT $1;`

	rows, err := p.db.Query(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("best per user: %w", err)
	}

	bests, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.UserBest, error) {
		var b domain.UserBest
		err := r.Scan(
			&b.Best.ID, &b.Best.UserID, &b.Best.Score, &b.Best.GameType, &b.Best.ReactionTime,
			&b.Best.Level, &b.Best.Accuracy, &b.Best.CreatedAt, &b.Best.UpdatedAt,
			&b.GamesPlayed, &b.User.Name, &b.User.Email,
		)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("best per user: %w", err)
	}

	return bests, nil
}

func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM records;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return n, nil
}

func (p *Postgres) CountPlayers(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRow(ctx, `SELECT COUNT(DISTINCT user_id) FROM records;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}

	return n, nil
}

func (p *Postgres) Top(ctx context.Context) (*domain.TopRecord, error) {
	const stmt = `
SELECT r.score, r.game_type, r.reaction_time, r.accuracy, r.create_time, u.name, u.email
FROM records r
JOIN users u ON u.id = r.user_id
ORDER BY r.score DESC, r.id ASC
LIMIT 1;`

	var t domain.TopRecord
	err := p.db.QueryRow(ctx, stmt).Scan(&t.Score, &t.GameType, &t.ReactionTime, &t.Accuracy, &t.CreatedAt, &t.User.Name, &t.User.Email)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("top record: %w", err)
	}

	return &t, nil
}

func (p *Postgres) ReactionTimeTotals(ctx context.Context) (float64, int64, error) {
	const stmt = `
SELECT COALESCE(SUM(reaction_time), 0), COUNT(reaction_time)
FROM records
WHERE reaction_time IS NOT NULL;`

	var (
		sum   float64
		count int64
	)
	if err := p.db.QueryRow(ctx, stmt).Scan(&sum, &count); err != nil {
		return 0, 0, fmt.Errorf("reaction time totals: %w", err)
	}

	return sum, count, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.User{}, fmt.Errorf("generate user ID: %w", err)
	}

	const stmt = `
INSERT INTO users (id, email, name, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING create_time, update_time;`

	err = p.db.QueryRow(ctx, stmt, id, u.Email, u.Name, u.PasswordHash).Scan(&u.CreatedAt, &u.UpdatedAt)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return domain.User{}, ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	u.ID = id.String()
	return u, nil
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return p.user(ctx, `SELECT id, email, name, password_hash, create_time, update_time FROM users WHERE email = $1;`, email)
}

func (p *Postgres) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return p.user(ctx, `SELECT id, email, name, password_hash, create_time, update_time FROM users WHERE id = $1;`, id)
}

func (p *Postgres) user(ctx context.Context, stmt string, arg string) (*domain.User, error) {
	var u domain.User
	err := p.db.QueryRow(ctx, stmt, arg).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var r domain.Record
	err := row.Scan(&r.ID, &r.UserID, &r.Score, &r.GameType, &r.ReactionTime, &r.Level, &r.Accuracy, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
