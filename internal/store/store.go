// Package store persists users and game records. Postgres is the production backend, Memory mirrors
// its observable behaviour for local runs and tests.
package store

import (
	"context"
	_ "embed"
	stderrors "errors"

	"github.com/victornm/speedcolor/internal/domain"
)

// Schema creates the tables used by Postgres. Statements are idempotent.
//
//go:embed schema.sql
var Schema string

var ErrEmailTaken = stderrors.New("store: email already registered")

// Records is the query surface the score and leaderboard services need.
type Records interface {
	// ListByUser returns up to limit records of a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Record, error)
	// Insert stores r and returns it with its ID and timestamps assigned.
	Insert(ctx context.Context, r domain.Record) (domain.Record, error)
	// BestByUser returns the highest scoring record of a user over the whole history, nil if the
	// user has none.
	BestByUser(ctx context.Context, userID string) (*domain.Record, error)
	// BestPerUser returns, for every user with at least one record, the best record and the record
	// count, sorted by best score descending and limited to limit rows.
	BestPerUser(ctx context.Context, limit int) ([]domain.UserBest, error)
	Count(ctx context.Context) (int64, error)
	// CountPlayers counts users having at least one record.
	CountPlayers(ctx context.Context) (int64, error)
	// Top returns the highest scoring record of all users, nil if there are no records.
	Top(ctx context.Context) (*domain.TopRecord, error)
	// ReactionTimeTotals sums the reaction times of the records that have one.
	ReactionTimeTotals(ctx context.Context) (sum float64, count int64, err error)
}

type Users interface {
	// CreateUser returns ErrEmailTaken when the email is already registered.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	// UserByEmail returns nil when no user has the email.
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	// UserByID returns nil when the user does not exist.
	UserByID(ctx context.Context, id string) (*domain.User, error)
}

// Store is implemented by both backends.
type Store interface {
	Records
	Users
	Ping(ctx context.Context) error
}
