package service

import (
	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/pkg/jwt"
)

// TokenService issues and validates access tokens
type TokenService struct {
	jwtService *jwt.Service
}

// NewTokenService creates a new token service
func NewTokenService(jwtService *jwt.Service) *TokenService {
	return &TokenService{jwtService: jwtService}
}

// IssueAccessToken signs a token whose subject is the user id
func (s *TokenService) IssueAccessToken(user *model.User) (*model.TokenResponse, error) {
	token, err := s.jwtService.Sign(jwt.Claims{
		Subject:  user.ID,
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	})
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtService.GetExpiration().Seconds()),
		User:        user.ToView(),
	}, nil
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.jwtService.Validate(token)
}
