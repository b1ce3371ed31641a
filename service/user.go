package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("role must be client or freelancer")
)

// UserService handles registration and credential checks.
type UserService struct {
	pool *pgxpool.Pool
}

func NewUserService(pool *pgxpool.Pool) *UserService {
	return &UserService{pool: pool}
}

// Register creates an account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, email, password, name, role string) (*model.User, error) {
	if email == "" || password == "" || name == "" {
		return nil, ErrInvalidCredentials
	}
	if role != model.RoleClient && role != model.RoleFreelancer {
		return nil, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("user: hash password: %w", err)
	}

	u := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
	}
	err = s.pool.QueryRow(ctx, `
        INSERT INTO users (email, password_hash, name, role)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at
    `, u.Email, u.PasswordHash, u.Name, u.Role).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user: insert: %w", err)
	}
	return u, nil
}

// Authenticate checks the email/password pair and returns the user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
        SELECT id, email, password_hash, name, role, created_at FROM users WHERE email=$1
    `, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user: fetch: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// GetByID returns a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
        SELECT id, email, password_hash, name, role, created_at FROM users WHERE id=$1
    `, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user: fetch: %w", err)
	}
	return &u, nil
}
