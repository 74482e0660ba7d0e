package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
)

// bcrypt cost factor (10-14 recommended for production)
const bcryptCost = 12

// Revoker invalidates a token before its natural expiry
type Revoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
}

// AuthService handles registration, login and logout
type AuthService struct {
	userRepo     repository.Repository[model.User]
	tokenService *TokenService
	revoker      Revoker
	cost         int
	now          func() time.Time
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	UserRepo     repository.Repository[model.User]
	TokenService *TokenService
	Revoker      Revoker
	// BcryptCost defaults to 12
	BcryptCost int
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcryptCost
	}
	return &AuthService{
		userRepo:     cfg.UserRepo,
		tokenService: cfg.TokenService,
		revoker:      cfg.Revoker,
		cost:         cost,
		now:          time.Now,
	}
}

// Register creates a new user account and signs them in
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.TokenResponse, error) {
	req.Normalize()
	if err := newValidationError(req.Validate()); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, repository.Eq(model.UserFieldEmail, req.Email))
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Add(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("add user: %w", err)
	}

	return s.tokenService.IssueAccessToken(user)
}

// Login authenticates a user with email/password
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	reg := model.RegisterRequest{Email: req.Email}
	reg.Normalize()

	users, err := s.userRepo.Find(ctx, repository.Eq(model.UserFieldEmail, reg.Email))
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if len(users) == 0 || users[0].PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	user := &users[0]
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.tokenService.IssueAccessToken(user)
}

// Logout revokes the caller's token until it would have expired anyway
func (s *AuthService) Logout(ctx context.Context, p *Principal) error {
	expiresAt := p.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(s.tokenService.jwtService.GetExpiration())
	}
	if err := s.revoker.Revoke(ctx, p.Token, expiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
