package user

import (
	"strings"
	"time"

	errors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/common/validation"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/pkg/password"
)

type RegisterDTO struct {
	FullName        string     `json:"full_name"`
	Surname         string     `json:"surname"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Gender          string     `json:"gender"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirm_password"`
	JoinDate        *time.Time `json:"join_date,omitempty"`
}

func (dto *RegisterDTO) Normalize() {
	dto.FullName = strings.TrimSpace(dto.FullName)
	dto.Surname = strings.TrimSpace(dto.Surname)
	dto.Email = strings.TrimSpace(dto.Email)
	dto.Gender = strings.TrimSpace(dto.Gender)
}

func (dto RegisterDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("full_name", dto.FullName).Required().MaxLength(100)
	v.Field("surname", dto.Surname).Required().MaxLength(100)
	v.Field("email", dto.Email).Required().MaxLength(255).Email()
	v.Field("role", dto.Role).Required().Custom(func(value interface{}) *errors.AppError {
		if _, err := identity.ParseRole(value.(string)); err != nil {
			return errors.NewValidationFieldError("role", "role must be one of Lecturer, Coordinator, Manager, HRManager", errors.ErrCodeInvalidRole)
		}
		return nil
	})
	v.Field("gender", dto.Gender).Required().MaxLength(20)
	v.Field("password", dto.Password).Required().Custom(func(value interface{}) *errors.AppError {
		if !password.IsStrong(value.(string)) {
			return errors.NewValidationFieldError("password", "password must be at least 8 characters and contain letters and digits", errors.ErrCodeWeakPassword)
		}
		return nil
	})
	v.Field("confirm_password", dto.ConfirmPassword).Custom(func(value interface{}) *errors.AppError {
		if value.(string) != dto.Password {
			return errors.NewValidationFieldError("confirm_password", "passwords do not match", errors.ErrCodePasswordMismatch)
		}
		return nil
	})
	v.Field("join_date", dto.JoinDate).NotFuture()

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateLecturerDTO carries the profile fields HR may change. Role is deliberately absent.
type UpdateLecturerDTO struct {
	FullName string `json:"full_name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Gender   string `json:"gender"`
}

func (dto *UpdateLecturerDTO) Normalize() {
	dto.FullName = strings.TrimSpace(dto.FullName)
	dto.Surname = strings.TrimSpace(dto.Surname)
	dto.Email = strings.TrimSpace(dto.Email)
	dto.Gender = strings.TrimSpace(dto.Gender)
}

func (dto UpdateLecturerDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("full_name", dto.FullName).Required().MaxLength(100)
	v.Field("surname", dto.Surname).Required().MaxLength(100)
	v.Field("email", dto.Email).Required().MaxLength(255).Email()
	v.Field("gender", dto.Gender).Required().MaxLength(20)

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type LecturersResponse struct {
	Lecturers []*User `json:"lecturers"`
	Count     int     `json:"count"`
}
