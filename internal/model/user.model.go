package model

import (
	"errors"
	"time"
)

type User struct {
	ID           int64     `json:"id"         db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	Email        string    `json:"email"      db:"email"         gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string    `json:"-"          db:"password_hash" gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }

type UserCreateRequest struct {
	Email        string
	PasswordHash string
}

func (p UserCreateRequest) Validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if p.PasswordHash == "" {
		return errors.New("password_hash is required")
	}
	return nil
}
