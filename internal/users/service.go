package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	DemoUsername = "demo-user"
	DemoPassword = "password"
)

// dummyHash is compared against on unknown usernames so response time does not
// reveal which names exist.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("hydralens-dummy"), bcrypt.DefaultCost)
	return h
})

// Service applies password hashing on top of a Repository.
type Service struct {
	repo   Repository
	cost   int
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cost: bcrypt.DefaultCost, logger: logger}
}

// Create registers a user with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, username, password string, profile map[string]any) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Username:     username,
		PasswordHash: string(hash),
		Profile:      profile,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("User created", "username", username, "id", u.ID)
	return u, nil
}

// Verify returns the user when the password matches, ErrInvalidCredentials otherwise.
func (s *Service) Verify(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Find(ctx context.Context, username string) (*User, error) {
	return s.repo.FindByUsername(ctx, username)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// SeedDemoUser creates demo-user/password unless it already exists.
func (s *Service) SeedDemoUser(ctx context.Context) (*User, error) {
	u, err := s.Create(ctx, DemoUsername, DemoPassword, map[string]any{
		"name":           "Demo User",
		"email":          "demo-user@example.com",
		"email_verified": true,
	})
	if errors.Is(err, ErrUsernameTaken) {
		return s.repo.FindByUsername(ctx, DemoUsername)
	}
	return u, err
}
