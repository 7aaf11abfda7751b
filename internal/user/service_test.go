package user_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/user"
)

type MockRepository struct {
	mu         sync.Mutex
	users      map[int64]*user.User
	nextID     int64
	shouldFail bool
}

func NewMockRepository() *MockRepository {
	return &MockRepository{users: make(map[int64]*user.User), nextID: 1}
}

func (m *MockRepository) SetShouldFail(fail bool) {
	m.shouldFail = fail
}

func (m *MockRepository) Create(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return apperrors.ErrStoreFailure.WithCause(errors.New("mock failure"))
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperrors.ErrDuplicateEmail
		}
	}
	u.ID = m.nextID
	m.nextID++
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (m *MockRepository) ListByRole(ctx context.Context, role identity.Role, query string) ([]*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*user.User
	for _, u := range m.users {
		if u.Role != role {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(u.DisplayName()+" "+u.Email), strings.ToLower(query)) {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockRepository) UpdateLecturerProfile(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok || existing.Role != identity.RoleLecturer {
		return apperrors.ErrUserNotFound
	}
	existing.FullName, existing.Surname, existing.Email, existing.Gender = u.FullName, u.Surname, u.Email, u.Gender
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func validRegistration(email string, role identity.Role) user.RegisterDTO {
	return user.RegisterDTO{
		FullName:        "Thandi",
		Surname:         "Mokoena",
		Email:           email,
		Role:            string(role),
		Gender:          "Female",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	}
}

func validationFields(err error) []string {
	appErr, ok := apperrors.IsAppError(err)
	Expect(ok).To(BeTrue())
	Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
	return appErr.Details.(apperrors.ValidationErrors).Fields()
}

var _ = Describe("User Service", func() {
	var (
		ctx     context.Context
		repo    *MockRepository
		service *user.Service
		hr      identity.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		service = user.NewService(repo, plainHasher{}, testLogger())
		hr = identity.Actor{UserID: 99, Role: identity.RoleHRManager}
	})

	Describe("Register", func() {
		It("stores a hashed password and the parsed role", func() {
			u, err := service.Register(ctx, validRegistration("thandi@example.com", identity.RoleLecturer))
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.Role).To(Equal(identity.RoleLecturer))
			Expect(u.PasswordHash).To(Equal("hashed:secret123"))
			Expect(u.JoinDate).NotTo(BeZero())
		})

		It("rejects weak passwords, mismatched confirmation and unknown roles together", func() {
			dto := validRegistration("thandi@example.com", identity.RoleLecturer)
			dto.Password = "short"
			dto.ConfirmPassword = "different"
			dto.Role = "Dean"

			_, err := service.Register(ctx, dto)
			Expect(validationFields(err)).To(ConsistOf("role", "password", "confirm_password"))
		})

		It("reports a duplicate email from the store", func() {
			_, err := service.Register(ctx, validRegistration("thandi@example.com", identity.RoleLecturer))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Register(ctx, validRegistration("thandi@example.com", identity.RoleManager))
			Expect(errors.Is(err, apperrors.ErrDuplicateEmail)).To(BeTrue())
		})
	})

	Describe("Lecturer management", func() {
		var lecturer, manager *user.User

		BeforeEach(func() {
			var err error
			lecturer, err = service.Register(ctx, validRegistration("thandi@example.com", identity.RoleLecturer))
			Expect(err).NotTo(HaveOccurred())
			manager, err = service.Register(ctx, validRegistration("lerato@example.com", identity.RoleManager))
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists only lecturers for HR", func() {
			lecturers, err := service.ListLecturers(ctx, hr, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(lecturers).To(HaveLen(1))
			Expect(lecturers[0].ID).To(Equal(lecturer.ID))
		})

		It("refuses other roles", func() {
			_, err := service.ListLecturers(ctx, identity.Actor{UserID: manager.ID, Role: identity.RoleManager}, "")
			Expect(errors.Is(err, apperrors.ErrRoleNotPermitted)).To(BeTrue())
		})

		It("updates a lecturer without changing the role", func() {
			updated, err := service.UpdateLecturer(ctx, hr, lecturer.ID, user.UpdateLecturerDTO{
				FullName: "Thandiwe", Surname: "Mokoena", Email: "thandiwe@example.com", Gender: "Female",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.FullName).To(Equal("Thandiwe"))
			Expect(updated.Role).To(Equal(identity.RoleLecturer))
		})

		It("treats non-lecturers as not found", func() {
			_, err := service.UpdateLecturer(ctx, hr, manager.ID, user.UpdateLecturerDTO{
				FullName: "X", Surname: "Y", Email: "x@example.com", Gender: "Male",
			})
			Expect(errors.Is(err, apperrors.ErrUserNotFound)).To(BeTrue())
		})
	})
})
