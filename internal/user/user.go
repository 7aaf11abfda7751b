package user

import (
	"strings"
	"time"

	"github.com/frahmantamala/claims-management/internal/core/identity"
	userDatamodel "github.com/frahmantamala/claims-management/internal/core/datamodel/user"
)

// User represents the internal user model
type User struct {
	ID           int64         `json:"id"`
	FullName     string        `json:"full_name"`
	Surname      string        `json:"surname"`
	Email        string        `json:"email"`
	Role         identity.Role `json:"role"`
	Gender       string        `json:"gender"`
	PasswordHash string        `json:"-"` // Never expose password hash
	JoinDate     time.Time     `json:"join_date"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// DisplayName is "full name" + " " + "surname".
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FullName + " " + u.Surname)
}

func (u *User) Actor() identity.Actor {
	return identity.Actor{UserID: u.ID, Role: u.Role, Name: u.DisplayName()}
}

func (u *User) ToDataModel() *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		FullName:     u.FullName,
		Surname:      u.Surname,
		Email:        u.Email,
		Role:         string(u.Role),
		Gender:       u.Gender,
		PasswordHash: u.PasswordHash,
		JoinDate:     u.JoinDate,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(m *userDatamodel.User) *User {
	return &User{
		ID:           m.ID,
		FullName:     m.FullName,
		Surname:      m.Surname,
		Email:        m.Email,
		Role:         identity.Role(m.Role),
		Gender:       m.Gender,
		PasswordHash: m.PasswordHash,
		JoinDate:     m.JoinDate,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
