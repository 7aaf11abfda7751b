package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/common/storeerr"
	userDatamodel "github.com/frahmantamala/claims-management/internal/core/datamodel/user"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/user"
)

// UserRepository implements user.Repository using GORM
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func translate(err error) error {
	if storeerr.IsUniqueViolation(err) {
		return apperrors.ErrDuplicateEmail.WithCause(err)
	}
	return storeerr.Translate(err)
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	row := u.ToDataModel()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return translate(err)
	}
	u.ID = row.ID
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *UserRepository) first(ctx context.Context, query string, arg interface{}) (*user.User, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, translate(err)
	}
	return user.FromDataModel(&row), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.first(ctx, "email = ?", email)
}

// ListByRole returns users of role whose names or email contain query, case-insensitively.
func (r *UserRepository) ListByRole(ctx context.Context, role identity.Role, query string) ([]*user.User, error) {
	tx := r.db.WithContext(ctx).Where("role = ?", string(role))
	if q := strings.TrimSpace(query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(full_name) LIKE ? OR LOWER(surname) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	var rows []userDatamodel.User
	if err := tx.Order("surname ASC, full_name ASC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}

	users := make([]*user.User, len(rows))
	for i := range rows {
		users[i] = user.FromDataModel(&rows[i])
	}
	return users, nil
}

func (r *UserRepository) UpdateLecturerProfile(ctx context.Context, u *user.User) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ? AND role = ?", u.ID, string(identity.RoleLecturer)).
		Updates(map[string]interface{}{
			"full_name":  u.FullName,
			"surname":    u.Surname,
			"email":      u.Email,
			"gender":     u.Gender,
			"updated_at": now,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	u.UpdatedAt = now
	return nil
}

// UpdatePassword replaces the stored hash. Used by the seed command.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
