package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/storage"
)

// UserService manages accounts and exchanges credentials for tokens.
// Password hashes never leave it.
type UserService struct {
	repo   storage.UserRepository
	issuer *auth.Issuer
}

func NewUserService(repo storage.UserRepository, issuer *auth.Issuer) *UserService {
	return &UserService{repo: repo, issuer: issuer}
}

func (s *UserService) ListUsers(ctx context.Context, activeOnly bool) ([]core.User, error) {
	return s.repo.ListUsers(ctx, activeOnly)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (core.User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser requires a password and stores only its bcrypt hash.
func (s *UserService) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.Password == "" {
		return core.User{}, fmt.Errorf("%w: password is required", core.ErrValidation)
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return core.User{}, err
	}
	u.Password = hash
	out, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return core.User{}, err
	}
	out.Password = ""
	return out, nil
}

// UpdateUser keeps the stored password unless a new one is given.
func (s *UserService) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if u.Password != "" {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return core.User{}, err
		}
		u.Password = hash
	}
	out, err := s.repo.UpdateUser(ctx, u)
	if err != nil {
		return core.User{}, err
	}
	out.Password = ""
	return out, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// Authenticate checks the credentials of an active user and issues a token.
// Unknown users, inactive users and wrong passwords all yield
// core.ErrUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (auth.Token, error) {
	log := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)
	u, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		log.InfoContext(ctx, "Login rejected", applog.FieldUsername, username, "reason", "unknown user")
		return auth.Token{}, fmt.Errorf("%w: invalid credentials", core.ErrUnauthorized)
	}
	if err != nil {
		return auth.Token{}, err
	}
	if !u.Active {
		log.InfoContext(ctx, "Login rejected", applog.FieldUsername, username, "reason", "inactive")
		return auth.Token{}, fmt.Errorf("%w: invalid credentials", core.ErrUnauthorized)
	}
	if err := auth.ComparePassword(u.Password, password); err != nil {
		log.InfoContext(ctx, "Login rejected", applog.FieldUsername, username, "reason", "password")
		return auth.Token{}, err
	}
	tok, err := s.issuer.Issue(u)
	if err != nil {
		return auth.Token{}, err
	}
	log.InfoContext(ctx, "Login succeeded", applog.FieldUsername, username, applog.FieldOperation, applog.OpLogin)
	return tok, nil
}
