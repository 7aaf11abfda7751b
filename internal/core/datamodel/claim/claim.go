package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

type Claim struct {
	ID                  int64           `gorm:"primaryKey"`
	LecturerID          int64           `gorm:"column:lecturer_id;not null;index"`
	Sessions            int             `gorm:"column:sessions;not null"`
	Hours               int             `gorm:"column:hours;not null"`
	Rate                int             `gorm:"column:rate;not null"`
	TotalAmount         decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2);not null"`
	ModuleName          string          `gorm:"column:module_name;not null"`
	FacultyName         string          `gorm:"column:faculty_name;not null"`
	SupportingDocuments string          `gorm:"column:supporting_documents"`
	Status              string          `gorm:"column:status;not null;default:Pending;index"`
	CreatedDate         time.Time       `gorm:"column:created_date;type:date;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Claim) TableName() string {
	return "claims"
}

// AuditEntry rows are insert-only.
type AuditEntry struct {
	ID          int64     `gorm:"primaryKey"`
	ClaimID     int64     `gorm:"column:claim_id;not null;index"`
	Action      string    `gorm:"column:action;not null"`
	ActorUserID int64     `gorm:"column:actor_user_id;not null"`
	Timestamp   time.Time `gorm:"column:occurred_at;not null"`
}

func (AuditEntry) TableName() string {
	return "claim_audit_entries"
}
