package auth

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/user"
)

// CredentialStore looks up accounts by login email.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

type PasswordVerifier interface {
	Verify(password, hash string) bool
}

type Service struct {
	store          CredentialStore
	verifier       PasswordVerifier
	tokenGenerator TokenGenerator
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(store CredentialStore, verifier PasswordVerifier, tokenGen TokenGenerator, logger *slog.Logger) *Service {
	return &Service{
		store:          store,
		verifier:       verifier,
		tokenGenerator: tokenGen,
		logger:         logger,
		now:            time.Now,
	}
}

// Authenticate checks the credentials and issues an access token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*LoginResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.store.GetByEmail(ctx, strings.TrimSpace(dto.Email))
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			s.logger.Info("login failed: unknown email")
			return nil, errors.ErrInvalidCredentials
		}
		s.logger.Error("login failed: credential lookup", "error", err)
		return nil, err
	}

	if !s.verifier.Verify(dto.Password, u.PasswordHash) {
		s.logger.Info("login failed: wrong password", "user_id", u.ID)
		return nil, errors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokenGenerator.GenerateAccessToken(u.Actor())
	if err != nil {
		s.logger.Error("failed to sign access token", "error", err, "user_id", u.ID)
		return nil, errors.NewInternalError("failed to issue token", err)
	}

	s.logger.Info("user logged in", "user_id", u.ID, "role", u.Role)
	return &LoginResponse{
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   int64(expiresAt.Sub(s.now()).Seconds()),
		User:        u,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}
