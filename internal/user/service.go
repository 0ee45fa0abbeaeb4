package user

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/victornm/speedcolor/internal/auth"
	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/errors"
	"github.com/victornm/speedcolor/internal/store"
)

const msgInvalidCredentials = "Invalid credentials"

type Config struct {
	Users  store.Users
	Tokens *auth.Tokens
	Hasher auth.Hasher
}

type Service struct {
	users  store.Users
	tokens *auth.Tokens
	hasher auth.Hasher
}

func NewService(c Config) *Service {
	return &Service{
		users:  c.Users,
		tokens: c.Tokens,
		hasher: c.Hasher,
	}
}

// RegisterRequest is already validated by the caller.
type RegisterRequest struct {
	Email    string
	Password string
	// Name is optional.
	Name *string
}

type AuthResponse struct {
	Token string
	User  domain.User
}

// Register creates a new account and signs a token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.CreateUser(ctx, domain.User{
		Email:        normalizeEmail(req.Email),
		Name:         req.Name,
		PasswordHash: hash,
	})
	if stderrors.Is(err, store.ErrEmailTaken) {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("Email already registered"),
			errors.WithCause(err),
		)
	}
	if err != nil {
		return nil, err
	}

	return s.issue(u)
}

type LoginRequest struct {
	Email    string
	Password string
}

// Login never tells which of email or password was wrong.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	u, err := s.users.UserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}

	if u == nil || !s.hasher.Compare(u.PasswordHash, req.Password) {
		return nil, errors.Unauthenticated(msgInvalidCredentials)
	}

	return s.issue(*u)
}

// Me returns the account behind a verified identity.
func (s *Service) Me(ctx context.Context, id auth.Identity) (*domain.User, error) {
	u, err := s.users.UserByID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	if u == nil {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("User not found"))
	}

	return u, nil
}

func (s *Service) issue(u domain.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: u}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
