package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/claim"
	"github.com/frahmantamala/claims-management/internal/core/common/storeerr"
	claimDatamodel "github.com/frahmantamala/claims-management/internal/core/datamodel/claim"
)

// ClaimRepository implements claim.Repository using GORM
type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// lecturerClaimRow is a claim joined with its lecturer's display name.
type lecturerClaimRow struct {
	claimDatamodel.Claim
	LecturerName string `gorm:"column:lecturer_name"`
}

func (r *ClaimRepository) Transaction(ctx context.Context, fn func(repo claim.Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ClaimRepository{db: tx})
	})
	return storeerr.Translate(err)
}

func (r *ClaimRepository) Create(ctx context.Context, c *claim.Claim) error {
	row := c.ToDataModel()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if storeerr.IsForeignKeyViolation(err) {
			return apperrors.ErrUnknownLecturer.WithCause(err)
		}
		return storeerr.Translate(err)
	}
	c.ID = row.ID
	c.CreatedAt = row.CreatedAt
	c.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*claim.Claim, error) {
	var row lecturerClaimRow
	err := r.joined(ctx).Where("c.id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrClaimNotFound
		}
		return nil, storeerr.Translate(err)
	}
	return toClaim(&row), nil
}

// UpdateStatus is a compare-and-set on status. Zero affected rows means the
// claim is gone or somebody else moved it first.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id int64, from, to claim.Status) error {
	res := r.db.WithContext(ctx).Model(&claimDatamodel.Claim{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return storeerr.Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrInvalidTransition.WithMessage("claim is no longer " + string(from))
	}
	return nil
}

func (r *ClaimRepository) AppendAudit(ctx context.Context, entry *claim.AuditEntry) error {
	row := entry.ToDataModel()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if storeerr.IsForeignKeyViolation(err) {
			return apperrors.ErrClaimNotFound.WithCause(err)
		}
		return storeerr.Translate(err)
	}
	entry.ID = row.ID
	return nil
}

func (r *ClaimRepository) ListByLecturer(ctx context.Context, lecturerID int64, status *claim.Status) ([]*claim.Claim, error) {
	tx := r.joined(ctx).Where("c.lecturer_id = ?", lecturerID)
	if status != nil {
		tx = tx.Where("c.status = ?", string(*status))
	}
	return r.list(tx.Order("c.created_at DESC, c.id DESC"))
}

func (r *ClaimRepository) ListByStatus(ctx context.Context, status claim.Status) ([]*claim.Claim, error) {
	return r.list(r.joined(ctx).Where("c.status = ?", string(status)).Order("c.created_at ASC, c.id ASC"))
}

// ListApproved filters on created_date, inclusive at both ends.
func (r *ClaimRepository) ListApproved(ctx context.Context, from, to *time.Time) ([]*claim.Claim, error) {
	tx := r.joined(ctx).Where("c.status = ?", string(claim.StatusApproved))
	if from != nil {
		tx = tx.Where("c.created_date >= ?", *from)
	}
	if to != nil {
		tx = tx.Where("c.created_date <= ?", *to)
	}
	return r.list(tx.Order("c.created_date ASC, c.id ASC"))
}

func (r *ClaimRepository) ListAudit(ctx context.Context, claimID int64) ([]*claim.AuditEntry, error) {
	var rows []claimDatamodel.AuditEntry
	err := r.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("occurred_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, storeerr.Translate(err)
	}

	entries := make([]*claim.AuditEntry, len(rows))
	for i := range rows {
		entries[i] = claim.AuditEntryFromDataModel(&rows[i])
	}
	return entries, nil
}

func (r *ClaimRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("claims AS c").
		Select("c.*, u.full_name || ' ' || u.surname AS lecturer_name").
		Joins("JOIN users u ON u.id = c.lecturer_id")
}

func (r *ClaimRepository) list(tx *gorm.DB) ([]*claim.Claim, error) {
	var rows []lecturerClaimRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, storeerr.Translate(err)
	}

	claims := make([]*claim.Claim, len(rows))
	for i := range rows {
		claims[i] = toClaim(&rows[i])
	}
	return claims, nil
}

func toClaim(row *lecturerClaimRow) *claim.Claim {
	c := claim.FromDataModel(&row.Claim)
	c.LecturerName = row.LecturerName
	return c
}
