package user

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// User is the resource owner record. Display fields are optional.
type User struct {
	ID         uuid.UUID `json:"id"`
	Name       *string   `json:"name"`
	Surname    *string   `json:"surname"`
	Patronymic *string   `json:"patronymic"`
}

// Profile holds the editable part of a User
type Profile struct {
	Name       *string `json:"name"`
	Surname    *string `json:"surname"`
	Patronymic *string `json:"patronymic"`
}

// Credential is one-to-one with a User and keyed by login
type Credential struct {
	UserID       uuid.UUID
	Login        string
	PasswordHash string
}

var ErrUserNotFound = errors.New("user not found")

// LoginExistsError reports a duplicate login and carries the owner's id
type LoginExistsError struct {
	Login  string
	UserID uuid.UUID
}

func (e *LoginExistsError) Error() string {
	return fmt.Sprintf("login %s already belongs to user %s", e.Login, e.UserID)
}
