package services

import (
	"context"
	"strings"
	"time"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/utils"
)

// AuthConfig controls credential minting and verification.
type AuthConfig struct {
	Secret string
	TTL    time.Duration
	// IssuedBefore rejects every credential minted before it. Zero disables the check.
	IssuedBefore time.Time
}

// AuthService resolves bearer credentials to users.
type AuthService struct {
	users *UserService
	cfg   AuthConfig
}

// NewAuthService constructs an AuthService.
func NewAuthService(users *UserService, cfg AuthConfig) *AuthService {
	return &AuthService{users: users, cfg: cfg}
}

// IssueToken mints a credential for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	return utils.GenerateToken(s.cfg.Secret, user.ID, s.cfg.TTL)
}

// Authenticate verifies a raw token and loads its active user.
// Role and status are read from the store, not the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized("missing token")
	}

	claims, err := utils.ParseToken(s.cfg.Secret, token, s.cfg.IssuedBefore)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token")
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("invalid token")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("account is disabled")
	}

	return user, nil
}

// AuthenticateHeader handles an "Authorization: Bearer <token>" value.
func (s *AuthService) AuthenticateHeader(ctx context.Context, header string) (*models.User, error) {
	if header == "" {
		return nil, apperr.Unauthorized("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, apperr.Unauthorized("invalid authorization header")
	}

	return s.Authenticate(ctx, strings.TrimSpace(parts[1]))
}

// RequireAdmin fails with Forbidden unless user is an admin.
func RequireAdmin(user *models.User) error {
	if user == nil || !user.IsAdmin() {
		return apperr.Forbidden("admin access required")
	}
	return nil
}
