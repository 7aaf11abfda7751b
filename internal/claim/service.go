package claim

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/common/validation"
	"github.com/frahmantamala/claims-management/internal/core/events"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/document"
)

// Repository is the claim store together with its audit log.
type Repository interface {
	// Transaction runs fn against a repository bound to one database transaction.
	// A non-nil error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id int64) (*Claim, error)
	// UpdateStatus moves a claim from one status to another only if it still has
	// status from. Otherwise it returns ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListByLecturer(ctx context.Context, lecturerID int64, status *Status) ([]*Claim, error)
	ListByStatus(ctx context.Context, status Status) ([]*Claim, error)
	ListApproved(ctx context.Context, from, to *time.Time) ([]*Claim, error)
	ListAudit(ctx context.Context, claimID int64) ([]*AuditEntry, error)
}

type DocumentStore interface {
	Save(ctx context.Context, up document.Upload) (string, error)
	Remove(ctx context.Context, name string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service is the claim workflow engine. It is the only writer of claim status.
type Service struct {
	repo            Repository
	documents       DocumentStore
	publisher       EventPublisher
	logger          *slog.Logger
	maxDocumentSize int64
	now             func() time.Time
}

type Option func(*Service)

func WithMaxDocumentSize(size int64) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxDocumentSize = size
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, documents DocumentStore, publisher EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		documents:       documents,
		publisher:       publisher,
		logger:          logger,
		maxDocumentSize: document.MaxSize,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitClaim records a new claim for the acting lecturer. Claims totalling at
// most AutoApprovalThreshold are approved in the same transaction that creates them.
func (s *Service) SubmitClaim(ctx context.Context, actor identity.Actor, dto SubmitClaimDTO, uploads []document.Upload) (*Claim, error) {
	if !actor.HasRole(identity.RoleLecturer) {
		s.logger.Warn("claim submission denied", "user_id", actor.UserID, "role", actor.Role)
		return nil, errors.ErrRoleNotPermitted
	}

	dto.Normalize()
	if err := dto.Validate(); err != nil {
		s.logger.Debug("claim validation failed", "error", err, "user_id", actor.UserID)
		return nil, err
	}
	if err := document.Validate(uploads, s.maxDocumentSize); err != nil {
		s.logger.Debug("document validation failed", "error", err, "user_id", actor.UserID)
		return nil, err
	}

	now := s.now()
	c := &Claim{
		LecturerID:          actor.UserID,
		Sessions:            dto.Sessions,
		Hours:               dto.Hours,
		Rate:                dto.Rate,
		TotalAmount:         ComputeTotal(dto.Sessions, dto.Hours, dto.Rate),
		ModuleName:          dto.ModuleName,
		FacultyName:         dto.FacultyName,
		SupportingDocuments: []string{},
		Status:              StatusPending,
		CreatedDate:         truncateToDate(now),
	}

	if c.NeedsManualReview() {
		s.logger.Warn("claim exceeds manual review threshold",
			"lecturer_id", actor.UserID,
			"total_amount", c.TotalAmount.String(),
			"threshold", ManualReviewThreshold)
	}

	var stored []string
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		for _, up := range uploads {
			name, err := s.documents.Save(ctx, up)
			if err != nil {
				return errors.ErrStoreFailure.WithCause(fmt.Errorf("store document %s: %w", up.Filename, err))
			}
			stored = append(stored, name)
		}
		c.SupportingDocuments = append([]string{}, stored...)

		if err := repo.Create(ctx, c); err != nil {
			return err
		}
		if err := repo.AppendAudit(ctx, NewAuditEntry(c.ID, ActionCreated, actor.UserID, now)); err != nil {
			return err
		}

		if QualifiesForAutoApproval(c.TotalAmount) {
			if err := repo.UpdateStatus(ctx, c.ID, AutoApproveTransition.From, AutoApproveTransition.To); err != nil {
				return err
			}
			if err := repo.AppendAudit(ctx, NewAuditEntry(c.ID, AutoApproveTransition.Action, actor.UserID, now)); err != nil {
				return err
			}
			c.Status = AutoApproveTransition.To
		}
		return nil
	})
	if err != nil {
		s.discardDocuments(ctx, stored)
		s.logger.Error("failed to submit claim", "error", err, "lecturer_id", actor.UserID)
		return nil, err
	}

	s.logger.Info("claim submitted",
		"claim_id", c.ID,
		"lecturer_id", actor.UserID,
		"total_amount", c.TotalAmount.String(),
		"status", c.Status,
		"documents", len(stored))

	s.publish(ctx, events.NewClaimSubmittedEvent(c.ID, c.LecturerID, c.TotalAmount, string(c.Status), c.NeedsManualReview()))
	if c.Status == StatusApproved {
		s.publish(ctx, events.NewClaimStatusChangedEvent(c.ID, string(AutoApproveTransition.From), string(AutoApproveTransition.To), string(AutoApproveTransition.Action), actor.UserID))
	}

	return c, nil
}

// Verify moves a Pending claim to Verified. Coordinators only.
func (s *Service) Verify(ctx context.Context, actor identity.Actor, claimID int64) (*Claim, error) {
	return s.apply(ctx, actor, claimID, VerifyTransition)
}

// Approve records a manager's decision on a Verified claim.
func (s *Service) Approve(ctx context.Context, actor identity.Actor, claimID int64, approve bool) (*Claim, error) {
	if approve {
		return s.apply(ctx, actor, claimID, ApproveTransition)
	}
	return s.apply(ctx, actor, claimID, RejectTransition)
}

// apply checks role, then existence, then current status before writing the
// status change and its audit entry in one transaction.
func (s *Service) apply(ctx context.Context, actor identity.Actor, claimID int64, t Transition) (*Claim, error) {
	if !actor.HasRole(t.Role) {
		s.logger.Warn("claim transition denied",
			"claim_id", claimID,
			"user_id", actor.UserID,
			"role", actor.Role,
			"action", t.Action)
		return nil, errors.ErrRoleNotPermitted
	}

	c, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if c.Status != t.From {
		s.logger.Warn("invalid claim transition",
			"claim_id", claimID,
			"status", c.Status,
			"action", t.Action)
		return nil, invalidTransition(c.Status, t)
	}

	now := s.now()
	err = s.repo.Transaction(ctx, func(repo Repository) error {
		if err := repo.UpdateStatus(ctx, claimID, t.From, t.To); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, NewAuditEntry(claimID, t.Action, actor.UserID, now))
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrInvalidTransition) {
			s.logger.Warn("claim status changed concurrently", "claim_id", claimID, "action", t.Action)
		} else {
			s.logger.Error("failed to update claim status", "error", err, "claim_id", claimID, "action", t.Action)
		}
		return nil, err
	}

	c.Status = t.To
	s.logger.Info("claim status changed",
		"claim_id", claimID,
		"from", t.From,
		"to", t.To,
		"actor_id", actor.UserID)

	s.publish(ctx, events.NewClaimStatusChangedEvent(claimID, string(t.From), string(t.To), string(t.Action), actor.UserID))
	return c, nil
}

func invalidTransition(current Status, t Transition) error {
	return errors.ErrInvalidTransition.WithMessage(
		fmt.Sprintf("claim is %s; %s requires %s", current, t.Action, t.From))
}

// GetClaim returns a claim. Lecturers may only read their own.
func (s *Service) GetClaim(ctx context.Context, actor identity.Actor, claimID int64) (*Claim, error) {
	c, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if actor.HasRole(identity.RoleLecturer) && c.LecturerID != actor.UserID {
		s.logger.Warn("claim access denied", "claim_id", claimID, "user_id", actor.UserID, "owner_id", c.LecturerID)
		return nil, errors.ErrClaimAccessDenied
	}
	return c, nil
}

// AuditTrail returns the audit entries of a claim, oldest first.
func (s *Service) AuditTrail(ctx context.Context, actor identity.Actor, claimID int64) ([]*AuditEntry, error) {
	if _, err := s.GetClaim(ctx, actor, claimID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAudit(ctx, claimID)
	if err != nil {
		s.logger.Error("failed to load audit trail", "error", err, "claim_id", claimID)
		return nil, err
	}
	return entries, nil
}

// ListLecturerClaims lists the acting lecturer's claims, optionally filtered by status.
func (s *Service) ListLecturerClaims(ctx context.Context, actor identity.Actor, status string) ([]*Claim, error) {
	if !actor.HasRole(identity.RoleLecturer) {
		return nil, errors.ErrRoleNotPermitted
	}

	var filter *Status
	if status != "" {
		parsed, err := ParseStatus(status)
		if err != nil {
			return nil, errors.NewValidationFieldError("status", "status must be one of Pending, Verified, Approved, Rejected", errors.ErrCodeInvalidStatus)
		}
		filter = &parsed
	}

	claims, err := s.repo.ListByLecturer(ctx, actor.UserID, filter)
	if err != nil {
		s.logger.Error("failed to list lecturer claims", "error", err, "lecturer_id", actor.UserID)
		return nil, err
	}
	return claims, nil
}

// ListPendingClaims is the coordinator's work queue.
func (s *Service) ListPendingClaims(ctx context.Context, actor identity.Actor) ([]*Claim, error) {
	return s.listQueue(ctx, actor, identity.RoleCoordinator, StatusPending)
}

// ListVerifiedClaims is the manager's work queue.
func (s *Service) ListVerifiedClaims(ctx context.Context, actor identity.Actor) ([]*Claim, error) {
	return s.listQueue(ctx, actor, identity.RoleManager, StatusVerified)
}

func (s *Service) listQueue(ctx context.Context, actor identity.Actor, role identity.Role, status Status) ([]*Claim, error) {
	if !actor.HasRole(role) {
		s.logger.Warn("claim queue denied", "user_id", actor.UserID, "role", actor.Role, "status", status)
		return nil, errors.ErrRoleNotPermitted
	}
	return s.ListClaimsByStatus(ctx, status)
}

// ListClaimsByStatus returns claims in status joined with the lecturer display name.
func (s *Service) ListClaimsByStatus(ctx context.Context, status Status) ([]*Claim, error) {
	claims, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		s.logger.Error("failed to list claims by status", "error", err, "status", status)
		return nil, err
	}
	return claims, nil
}

// ListApprovedClaims returns approved claims created within [from, to]. HR only.
func (s *Service) ListApprovedClaims(ctx context.Context, actor identity.Actor, from, to *time.Time) ([]*Claim, error) {
	if !actor.HasRole(identity.RoleHRManager) {
		s.logger.Warn("approved claims listing denied", "user_id", actor.UserID, "role", actor.Role)
		return nil, errors.ErrRoleNotPermitted
	}
	if err := validation.ValidateDateRange(from, to); err != nil {
		return nil, err
	}

	claims, err := s.repo.ListApproved(ctx, dateOnly(from), dateOnly(to))
	if err != nil {
		s.logger.Error("failed to list approved claims", "error", err)
		return nil, err
	}
	return claims, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func (s *Service) discardDocuments(ctx context.Context, names []string) {
	for _, name := range names {
		if err := s.documents.Remove(context.WithoutCancel(ctx), name); err != nil {
			s.logger.Error("failed to remove orphaned document", "document", name, "error", err)
		}
	}
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := truncateToDate(*t)
	return &d
}
