package claim

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	claimDatamodel "github.com/frahmantamala/claims-management/internal/core/datamodel/claim"
	"github.com/frahmantamala/claims-management/internal/core/identity"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusVerified Status = "Verified"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

type Action string

const (
	ActionCreated      Action = "Created"
	ActionAutoApproved Action = "Auto-Approved"
	ActionVerified     Action = "Verified"
	ActionApproved     Action = "Approved"
	ActionRejected     Action = "Rejected"
)

const (
	// AutoApprovalThreshold is inclusive: a total of exactly 1000 is auto-approved.
	AutoApprovalThreshold = 1000
	// ManualReviewThreshold is exclusive: only totals above 50000 are flagged.
	ManualReviewThreshold = 50000

	documentSeparator = ";"
)

var (
	autoApprovalLimit = decimal.NewFromInt(AutoApprovalThreshold)
	manualReviewLimit = decimal.NewFromInt(ManualReviewThreshold)

	// MaxTotalAmount is the largest total the store can hold.
	MaxTotalAmount = decimal.RequireFromString("999999999999.99")

	ErrUnknownStatus = errors.New("unknown claim status")
)

func ParseStatus(value string) (Status, error) {
	s := Status(strings.TrimSpace(value))
	switch s {
	case StatusPending, StatusVerified, StatusApproved, StatusRejected:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Transition is one edge of the claim state machine.
type Transition struct {
	From   Status
	To     Status
	Role   identity.Role
	Action Action
}

var (
	AutoApproveTransition = Transition{From: StatusPending, To: StatusApproved, Role: identity.RoleLecturer, Action: ActionAutoApproved}
	VerifyTransition      = Transition{From: StatusPending, To: StatusVerified, Role: identity.RoleCoordinator, Action: ActionVerified}
	ApproveTransition     = Transition{From: StatusVerified, To: StatusApproved, Role: identity.RoleManager, Action: ActionApproved}
	RejectTransition      = Transition{From: StatusVerified, To: StatusRejected, Role: identity.RoleManager, Action: ActionRejected}
)

type Claim struct {
	ID                  int64           `json:"id"`
	LecturerID          int64           `json:"lecturer_id"`
	LecturerName        string          `json:"lecturer_name,omitempty"`
	Sessions            int             `json:"sessions"`
	Hours               int             `json:"hours"`
	Rate                int             `json:"rate"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	ModuleName          string          `json:"module_name"`
	FacultyName         string          `json:"faculty_name"`
	SupportingDocuments []string        `json:"supporting_documents"`
	Status              Status          `json:"status"`
	CreatedDate         time.Time       `json:"created_date"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ComputeTotal returns sessions × hours × rate without rounding.
func ComputeTotal(sessions, hours, rate int) decimal.Decimal {
	return decimal.NewFromInt(int64(sessions)).
		Mul(decimal.NewFromInt(int64(hours))).
		Mul(decimal.NewFromInt(int64(rate)))
}

func QualifiesForAutoApproval(total decimal.Decimal) bool {
	return total.LessThanOrEqual(autoApprovalLimit)
}

func NeedsManualReview(total decimal.Decimal) bool {
	return total.GreaterThan(manualReviewLimit)
}

func (c *Claim) NeedsManualReview() bool {
	return NeedsManualReview(c.TotalAmount)
}

func (c *Claim) ToDataModel() *claimDatamodel.Claim {
	return &claimDatamodel.Claim{
		ID:                  c.ID,
		LecturerID:          c.LecturerID,
		Sessions:            c.Sessions,
		Hours:               c.Hours,
		Rate:                c.Rate,
		TotalAmount:         c.TotalAmount,
		ModuleName:          c.ModuleName,
		FacultyName:         c.FacultyName,
		SupportingDocuments: strings.Join(c.SupportingDocuments, documentSeparator),
		Status:              string(c.Status),
		CreatedDate:         c.CreatedDate,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func FromDataModel(m *claimDatamodel.Claim) *Claim {
	docs := []string{}
	if m.SupportingDocuments != "" {
		docs = strings.Split(m.SupportingDocuments, documentSeparator)
	}
	return &Claim{
		ID:                  m.ID,
		LecturerID:          m.LecturerID,
		Sessions:            m.Sessions,
		Hours:               m.Hours,
		Rate:                m.Rate,
		TotalAmount:         m.TotalAmount,
		ModuleName:          m.ModuleName,
		FacultyName:         m.FacultyName,
		SupportingDocuments: docs,
		Status:              Status(m.Status),
		CreatedDate:         m.CreatedDate,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

type AuditEntry struct {
	ID          int64     `json:"id"`
	ClaimID     int64     `json:"claim_id"`
	Action      Action    `json:"action"`
	ActorUserID int64     `json:"actor_user_id"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewAuditEntry(claimID int64, action Action, actorUserID int64, at time.Time) *AuditEntry {
	return &AuditEntry{ClaimID: claimID, Action: action, ActorUserID: actorUserID, Timestamp: at}
}

func (a *AuditEntry) ToDataModel() *claimDatamodel.AuditEntry {
	return &claimDatamodel.AuditEntry{
		ID:          a.ID,
		ClaimID:     a.ClaimID,
		Action:      string(a.Action),
		ActorUserID: a.ActorUserID,
		Timestamp:   a.Timestamp,
	}
}

func AuditEntryFromDataModel(m *claimDatamodel.AuditEntry) *AuditEntry {
	return &AuditEntry{
		ID:          m.ID,
		ClaimID:     m.ClaimID,
		Action:      Action(m.Action),
		ActorUserID: m.ActorUserID,
		Timestamp:   m.Timestamp,
	}
}
