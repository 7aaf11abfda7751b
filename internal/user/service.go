package user

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/identity"
)

// Repository is the credential store.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByEmail matches exactly; no case folding.
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role identity.Role, query string) ([]*User, error)
	// UpdateLecturerProfile updates name, email and gender of a lecturer. Other roles are not found.
	UpdateLecturerProfile(ctx context.Context, u *User) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, hasher PasswordHasher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates an account. Email uniqueness is left to the store.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*User, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		s.logger.Debug("registration validation failed", "error", err)
		return nil, err
	}

	role, _ := identity.ParseRole(dto.Role)

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, errors.NewInternalError("failed to process password", err)
	}

	joinDate := s.now().UTC().Truncate(24 * time.Hour)
	if dto.JoinDate != nil {
		joinDate = dto.JoinDate.UTC().Truncate(24 * time.Hour)
	}

	u := &User{
		FullName:     dto.FullName,
		Surname:      dto.Surname,
		Email:        dto.Email,
		Role:         role,
		Gender:       dto.Gender,
		PasswordHash: hash,
		JoinDate:     joinDate,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		s.logger.Error("failed to create user", "error", err, "role", role)
		return nil, err
	}

	s.logger.Info("user registered", "user_id", u.ID, "role", role)
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Debug("user lookup failed", "user_id", id, "error", err)
		return nil, err
	}
	return u, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) ListLecturers(ctx context.Context, actor identity.Actor, query string) ([]*User, error) {
	if !actor.HasRole(identity.RoleHRManager) {
		s.logger.Warn("lecturer listing denied", "user_id", actor.UserID, "role", actor.Role)
		return nil, errors.ErrRoleNotPermitted
	}

	lecturers, err := s.repo.ListByRole(ctx, identity.RoleLecturer, query)
	if err != nil {
		s.logger.Error("failed to list lecturers", "error", err)
		return nil, err
	}
	return lecturers, nil
}

// UpdateLecturer lets HR correct a lecturer's profile. The role never changes.
func (s *Service) UpdateLecturer(ctx context.Context, actor identity.Actor, lecturerID int64, dto UpdateLecturerDTO) (*User, error) {
	if !actor.HasRole(identity.RoleHRManager) {
		s.logger.Warn("lecturer update denied", "user_id", actor.UserID, "role", actor.Role, "lecturer_id", lecturerID)
		return nil, errors.ErrRoleNotPermitted
	}

	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, lecturerID)
	if err != nil {
		return nil, err
	}
	if existing.Role != identity.RoleLecturer {
		s.logger.Warn("attempt to edit non-lecturer through lecturer endpoint", "user_id", lecturerID, "role", existing.Role)
		return nil, errors.ErrUserNotFound
	}

	existing.FullName = dto.FullName
	existing.Surname = dto.Surname
	existing.Email = dto.Email
	existing.Gender = dto.Gender

	if err := s.repo.UpdateLecturerProfile(ctx, existing); err != nil {
		s.logger.Error("failed to update lecturer", "error", err, "lecturer_id", lecturerID)
		return nil, err
	}

	s.logger.Info("lecturer updated", "lecturer_id", lecturerID, "updated_by", actor.UserID)
	return existing, nil
}
