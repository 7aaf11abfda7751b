package claim_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/claim"
	"github.com/frahmantamala/claims-management/internal/core/events"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/document"
)

// MockRepository keeps claims in memory. Transactions are serialized; each
// snapshots state and restores it when fn fails.
type MockRepository struct {
	txMu       sync.Mutex
	mu         sync.Mutex
	claims     map[int64]*claim.Claim
	audit      []*claim.AuditEntry
	names      map[int64]string
	nextID     int64
	shouldFail bool
	failAudit  claim.Action
	// beforeUpdate runs right before the conditional status write.
	beforeUpdate func(id int64)
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		claims: make(map[int64]*claim.Claim),
		names:  make(map[int64]string),
		nextID: 1,
	}
}

func (m *MockRepository) SetShouldFail(fail bool) {
	m.shouldFail = fail
}

func (m *MockRepository) Transaction(ctx context.Context, fn func(repo claim.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	claims := make(map[int64]*claim.Claim, len(m.claims))
	for id, c := range m.claims {
		cp := *c
		claims[id] = &cp
	}
	audit := append([]*claim.AuditEntry{}, m.audit...)
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.claims, m.audit, m.nextID = claims, audit, nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockRepository) Create(ctx context.Context, c *claim.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return apperrors.ErrStoreFailure.WithCause(errors.New("mock failure"))
	}
	c.ID = m.nextID
	m.nextID++
	cp := *c
	cp.LecturerName = m.names[c.LecturerID]
	m.claims[c.ID] = &cp
	return nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*claim.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, apperrors.ErrClaimNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id int64, from, to claim.Status) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok || c.Status != from {
		return apperrors.ErrInvalidTransition
	}
	c.Status = to
	return nil
}

func (m *MockRepository) AppendAudit(ctx context.Context, entry *claim.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit != "" && entry.Action == m.failAudit {
		return apperrors.ErrStoreFailure.WithCause(errors.New("audit write failed"))
	}
	entry.ID = int64(len(m.audit) + 1)
	cp := *entry
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *MockRepository) filter(keep func(*claim.Claim) bool) []*claim.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*claim.Claim
	for _, c := range m.claims {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockRepository) ListByLecturer(ctx context.Context, lecturerID int64, status *claim.Status) ([]*claim.Claim, error) {
	return m.filter(func(c *claim.Claim) bool {
		return c.LecturerID == lecturerID && (status == nil || c.Status == *status)
	}), nil
}

func (m *MockRepository) ListByStatus(ctx context.Context, status claim.Status) ([]*claim.Claim, error) {
	return m.filter(func(c *claim.Claim) bool { return c.Status == status }), nil
}

func (m *MockRepository) ListApproved(ctx context.Context, from, to *time.Time) ([]*claim.Claim, error) {
	return m.filter(func(c *claim.Claim) bool {
		if c.Status != claim.StatusApproved {
			return false
		}
		if from != nil && c.CreatedDate.Before(*from) {
			return false
		}
		return to == nil || !c.CreatedDate.After(*to)
	}), nil
}

func (m *MockRepository) ListAudit(ctx context.Context, claimID int64) ([]*claim.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*claim.AuditEntry
	for _, e := range m.audit {
		if e.ClaimID == claimID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRepository) actions(claimID int64) []claim.Action {
	entries, _ := m.ListAudit(context.Background(), claimID)
	actions := make([]claim.Action, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

type MockDocumentStore struct {
	mu         sync.Mutex
	files      map[string][]byte
	seq        int
	shouldFail bool
}

func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{files: make(map[string][]byte)}
}

func (s *MockDocumentStore) Save(ctx context.Context, up document.Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail {
		return "", errors.New("disk full")
	}
	s.seq++
	name := fmt.Sprintf("%d_%s", s.seq, up.Filename)
	s.files[name] = up.Content
	return name, nil
}

func (s *MockDocumentStore) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

func (s *MockDocumentStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var (
	lecturer    = identity.Actor{UserID: 1, Role: identity.RoleLecturer, Name: "Thandi Mokoena"}
	coordinator = identity.Actor{UserID: 2, Role: identity.RoleCoordinator}
	manager     = identity.Actor{UserID: 3, Role: identity.RoleManager}
	hr          = identity.Actor{UserID: 4, Role: identity.RoleHRManager}
)

func submission(sessions, hours, rate int) claim.SubmitClaimDTO {
	return claim.SubmitClaimDTO{
		Sessions:    sessions,
		Hours:       hours,
		Rate:        rate,
		ModuleName:  "PROG6212",
		FacultyName: "IT",
	}
}

var _ = Describe("Claim Service", func() {
	var (
		ctx       context.Context
		repo      *MockRepository
		docs      *MockDocumentStore
		publisher *recordingPublisher
		service   *claim.Service
		today     time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		docs = NewMockDocumentStore()
		publisher = &recordingPublisher{}
		today = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
		service = claim.NewService(repo, docs, publisher, testLogger(), claim.WithClock(func() time.Time { return today }))
	})

	Describe("SubmitClaim", func() {
		It("auto-approves a claim at or below the threshold", func() {
			c, err := service.SubmitClaim(ctx, lecturer, submission(2, 3, 100), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.TotalAmount.Equal(decimal.NewFromInt(600))).To(BeTrue())
			Expect(c.Status).To(Equal(claim.StatusApproved))
			Expect(repo.actions(c.ID)).To(Equal([]claim.Action{claim.ActionCreated, claim.ActionAutoApproved}))

			stored, err := repo.GetByID(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(claim.StatusApproved))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeClaimSubmitted, events.EventTypeClaimStatusChanged}))
		})

		It("treats a total of exactly 1000 as auto-approvable", func() {
			c, err := service.SubmitClaim(ctx, lecturer, submission(1, 10, 100), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Status).To(Equal(claim.StatusApproved))
		})

		It("leaves a claim above the threshold pending", func() {
			c, err := service.SubmitClaim(ctx, lecturer, submission(1, 1, 1001), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Status).To(Equal(claim.StatusPending))
			Expect(c.NeedsManualReview()).To(BeFalse())
			Expect(repo.actions(c.ID)).To(Equal([]claim.Action{claim.ActionCreated}))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeClaimSubmitted}))
		})

		It("flags but does not block claims above the manual review threshold", func() {
			c, err := service.SubmitClaim(ctx, lecturer, submission(10, 10, 600), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.TotalAmount.Equal(decimal.NewFromInt(60000))).To(BeTrue())
			Expect(c.Status).To(Equal(claim.StatusPending))
			Expect(c.NeedsManualReview()).To(BeTrue())
		})

		It("does not flag a total of exactly 50000", func() {
			c, err := service.SubmitClaim(ctx, lecturer, submission(10, 10, 500), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.NeedsManualReview()).To(BeFalse())
		})

		It("stamps the claim with the submission date", func() {
			c, err := service.SubmitClaim(ctx, lecturer, submission(2, 3, 500), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.CreatedDate).To(Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)))
			Expect(c.LecturerID).To(Equal(lecturer.UserID))
		})

		It("refuses non-lecturers without touching the store", func() {
			for _, actor := range []identity.Actor{coordinator, manager, hr} {
				_, err := service.SubmitClaim(ctx, actor, submission(1, 1, 1), nil)
				Expect(errors.Is(err, apperrors.ErrRoleNotPermitted)).To(BeTrue())
			}
			Expect(repo.claims).To(BeEmpty())
		})

		It("reports every invalid field at once", func() {
			dto := claim.SubmitClaimDTO{Sessions: 0, Hours: -1, Rate: 5, ModuleName: "  ", FacultyName: "IT"}

			_, err := service.SubmitClaim(ctx, lecturer, dto, nil)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
			Expect(appErr.Details.(apperrors.ValidationErrors).Fields()).To(Equal([]string{"sessions", "hours", "module_name"}))
			Expect(repo.claims).To(BeEmpty())
		})

		It("rejects quantities beyond the stored integer range as field errors", func() {
			dto := submission(3000000000, 1000, 1000)

			_, err := service.SubmitClaim(ctx, lecturer, dto, nil)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
			Expect(appErr.Details.(apperrors.ValidationErrors).Fields()).To(Equal([]string{"sessions"}))
			Expect(repo.claims).To(BeEmpty())
		})

		It("rejects a total that does not fit the amount column", func() {
			dto := submission(1000000, 1000000, 1000)

			_, err := service.SubmitClaim(ctx, lecturer, dto, nil)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Details.(apperrors.ValidationErrors).Fields()).To(Equal([]string{"total_amount"}))
			Expect(repo.claims).To(BeEmpty())
		})

		It("accepts the largest storable total", func() {
			c, err := service.SubmitClaim(ctx, lecturer, submission(999999, 1000001, 1), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.TotalAmount.LessThanOrEqual(claim.MaxTotalAmount)).To(BeTrue())
		})

		It("rejects a disallowed document before storing anything", func() {
			uploads := []document.Upload{
				{Filename: "timesheet.pdf", Content: []byte("ok")},
				{Filename: "payload.exe", Content: []byte("bad")},
			}

			_, err := service.SubmitClaim(ctx, lecturer, submission(1, 1, 1), uploads)
			Expect(err).To(MatchError(ContainSubstring("payload.exe")))
			Expect(repo.claims).To(BeEmpty())
			Expect(docs.count()).To(BeZero())
		})

		It("stores accepted documents in order", func() {
			uploads := []document.Upload{
				{Filename: "timesheet.pdf", Content: []byte("1")},
				{Filename: "hours.xlsx", Content: []byte("2")},
			}

			c, err := service.SubmitClaim(ctx, lecturer, submission(5, 5, 100), uploads)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SupportingDocuments).To(Equal([]string{"1_timesheet.pdf", "2_hours.xlsx"}))
			Expect(docs.count()).To(Equal(2))
		})

		It("rolls back and removes written documents when the audit append fails", func() {
			repo.failAudit = claim.ActionAutoApproved
			uploads := []document.Upload{{Filename: "timesheet.pdf", Content: []byte("1")}}

			_, err := service.SubmitClaim(ctx, lecturer, submission(1, 1, 100), uploads)
			Expect(errors.Is(err, apperrors.ErrStoreFailure)).To(BeTrue())
			Expect(repo.claims).To(BeEmpty())
			Expect(repo.audit).To(BeEmpty())
			Expect(docs.count()).To(BeZero())
			Expect(publisher.types()).To(BeEmpty())
		})

		It("fails cleanly when document storage fails", func() {
			docs.shouldFail = true
			uploads := []document.Upload{{Filename: "timesheet.pdf", Content: []byte("1")}}

			_, err := service.SubmitClaim(ctx, lecturer, submission(1, 1, 100), uploads)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeStore))
			Expect(appErr.Message).To(Equal(apperrors.GenericStoreMessage))
			Expect(repo.claims).To(BeEmpty())
		})

		It("surfaces store failures on insert", func() {
			repo.SetShouldFail(true)
			_, err := service.SubmitClaim(ctx, lecturer, submission(1, 1, 100), nil)
			Expect(errors.Is(err, apperrors.ErrStoreFailure)).To(BeTrue())
		})
	})

	Describe("workflow transitions", func() {
		var pending *claim.Claim

		BeforeEach(func() {
			var err error
			pending, err = service.SubmitClaim(ctx, lecturer, submission(2, 3, 500), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending.Status).To(Equal(claim.StatusPending))
		})

		It("runs the full Pending to Verified to Approved path", func() {
			verified, err := service.Verify(ctx, coordinator, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(verified.Status).To(Equal(claim.StatusVerified))

			approved, err := service.Approve(ctx, manager, pending.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(claim.StatusApproved))
			Expect(approved.TotalAmount.Equal(decimal.NewFromInt(3000))).To(BeTrue())

			Expect(repo.actions(pending.ID)).To(Equal([]claim.Action{claim.ActionCreated, claim.ActionVerified, claim.ActionApproved}))
			trail, err := service.AuditTrail(ctx, manager, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(trail[1].ActorUserID).To(Equal(coordinator.UserID))
			Expect(trail[2].ActorUserID).To(Equal(manager.UserID))
		})

		It("records a rejection", func() {
			_, err := service.Verify(ctx, coordinator, pending.ID)
			Expect(err).NotTo(HaveOccurred())

			rejected, err := service.Approve(ctx, manager, pending.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(claim.StatusRejected))
			Expect(repo.actions(pending.ID)).To(Equal([]claim.Action{claim.ActionCreated, claim.ActionVerified, claim.ActionRejected}))
		})

		It("checks the role before existence", func() {
			_, err := service.Verify(ctx, manager, 9999)
			Expect(errors.Is(err, apperrors.ErrRoleNotPermitted)).To(BeTrue())

			_, err = service.Verify(ctx, coordinator, 9999)
			Expect(errors.Is(err, apperrors.ErrClaimNotFound)).To(BeTrue())
		})

		It("refuses a manager decision on a pending claim", func() {
			_, err := service.Approve(ctx, manager, pending.ID, true)
			Expect(errors.Is(err, apperrors.ErrInvalidTransition)).To(BeTrue())
			Expect(repo.actions(pending.ID)).To(Equal([]claim.Action{claim.ActionCreated}))
		})

		It("refuses coordinators deciding and managers verifying", func() {
			_, err := service.Verify(ctx, manager, pending.ID)
			Expect(errors.Is(err, apperrors.ErrRoleNotPermitted)).To(BeTrue())

			_, err = service.Verify(ctx, coordinator, pending.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(ctx, coordinator, pending.ID, true)
			Expect(errors.Is(err, apperrors.ErrRoleNotPermitted)).To(BeTrue())
		})

		It("never leaves a terminal status", func() {
			_, err := service.Verify(ctx, coordinator, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, manager, pending.ID, false)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(ctx, manager, pending.ID, true)
			Expect(errors.Is(err, apperrors.ErrInvalidTransition)).To(BeTrue())
			_, err = service.Verify(ctx, coordinator, pending.ID)
			Expect(errors.Is(err, apperrors.ErrInvalidTransition)).To(BeTrue())

			stored, _ := repo.GetByID(ctx, pending.ID)
			Expect(stored.Status).To(Equal(claim.StatusRejected))
		})

		It("reports a lost race as an invalid transition without an audit entry", func() {
			repo.beforeUpdate = func(id int64) {
				repo.mu.Lock()
				repo.claims[id].Status = claim.StatusVerified
				repo.mu.Unlock()
			}

			_, err := service.Verify(ctx, coordinator, pending.ID)
			Expect(errors.Is(err, apperrors.ErrInvalidTransition)).To(BeTrue())
			Expect(repo.actions(pending.ID)).To(Equal([]claim.Action{claim.ActionCreated}))
		})

		It("lets exactly one of two concurrent verifications succeed", func() {
			var wg sync.WaitGroup
			results := make(chan error, 2)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := service.Verify(ctx, coordinator, pending.ID)
					results <- err
				}()
			}
			wg.Wait()
			close(results)

			var succeeded, conflicted int
			for err := range results {
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, apperrors.ErrInvalidTransition):
					conflicted++
				}
			}
			Expect(succeeded).To(Equal(1))
			Expect(conflicted).To(Equal(1))
			Expect(repo.actions(pending.ID)).To(Equal([]claim.Action{claim.ActionCreated, claim.ActionVerified}))
		})

		It("keeps the status when the audit append fails", func() {
			repo.failAudit = claim.ActionVerified

			_, err := service.Verify(ctx, coordinator, pending.ID)
			Expect(errors.Is(err, apperrors.ErrStoreFailure)).To(BeTrue())
			stored, _ := repo.GetByID(ctx, pending.ID)
			Expect(stored.Status).To(Equal(claim.StatusPending))
		})
	})

	Describe("reads", func() {
		var small, large *claim.Claim

		BeforeEach(func() {
			var err error
			small, err = service.SubmitClaim(ctx, lecturer, submission(1, 2, 300), nil)
			Expect(err).NotTo(HaveOccurred())
			large, err = service.SubmitClaim(ctx, lecturer, submission(4, 5, 100), nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists a lecturer's own claims with a status filter", func() {
			all, err := service.ListLecturerClaims(ctx, lecturer, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			pendingOnly, err := service.ListLecturerClaims(ctx, lecturer, "Pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(pendingOnly).To(HaveLen(1))
			Expect(pendingOnly[0].ID).To(Equal(large.ID))

			other := identity.Actor{UserID: 77, Role: identity.RoleLecturer}
			none, err := service.ListLecturerClaims(ctx, other, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(none).To(BeEmpty())
		})

		It("rejects an unknown status filter", func() {
			_, err := service.ListLecturerClaims(ctx, lecturer, "Paid")
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
		})

		It("serves each role its own queue", func() {
			pending, err := service.ListPendingClaims(ctx, coordinator)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))

			_, err = service.ListPendingClaims(ctx, manager)
			Expect(errors.Is(err, apperrors.ErrRoleNotPermitted)).To(BeTrue())

			verified, err := service.ListVerifiedClaims(ctx, manager)
			Expect(err).NotTo(HaveOccurred())
			Expect(verified).To(BeEmpty())
		})

		It("restricts lecturers to their own claims", func() {
			other := identity.Actor{UserID: 77, Role: identity.RoleLecturer}
			_, err := service.GetClaim(ctx, other, small.ID)
			Expect(errors.Is(err, apperrors.ErrClaimAccessDenied)).To(BeTrue())

			c, err := service.GetClaim(ctx, coordinator, small.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(Equal(small.ID))
		})

		It("lists approved claims in a date range for HR", func() {
			from := today.AddDate(0, 0, -1)
			to := today
			approved, err := service.ListApprovedClaims(ctx, hr, &from, &to)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved).To(HaveLen(1))
			Expect(approved[0].ID).To(Equal(small.ID))

			_, err = service.ListApprovedClaims(ctx, manager, nil, nil)
			Expect(errors.Is(err, apperrors.ErrRoleNotPermitted)).To(BeTrue())

			_, err = service.ListApprovedClaims(ctx, hr, &to, &from)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
		})
	})
})
