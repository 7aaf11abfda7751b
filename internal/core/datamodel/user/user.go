package user

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey"`
	FullName     string    `gorm:"column:full_name;not null"`
	Surname      string    `gorm:"column:surname;not null"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	Role         string    `gorm:"column:role;not null"`
	Gender       string    `gorm:"column:gender"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	JoinDate     time.Time `gorm:"column:join_date;type:date"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
