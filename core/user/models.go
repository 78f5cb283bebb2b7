package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soma/core"
)

// User types
const (
	TypeStudent = "student"
	TypeTeacher = "teacher"
)

var Types = []string{TypeStudent, TypeTeacher}

// User is the local copy of an identity provider user.
type User struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`         // argon2 encoded; seeded users only
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
}

func (u User) LogPerson() core.LogPerson {
	return core.LogPerson{ID: u.UserID, Username: u.Name, Email: u.Email}
}

// Profile is a user as known by the identity provider.
type Profile struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email"`
	Name     string                 `json:"name"`
	UserType string                 `json:"userType"`
	Settings map[string]interface{} `json:"settings"`
}

func (p Profile) toUser() User {
	return User{
		UserID: p.ID,
		Email:  core.CleanString(p.Email, true /* lower */),
		Name:   core.CleanString(p.Name),
	}
}

type PublicMetadata struct {
	UserType string                 `json:"userType" validate:"required,usertype"`
	Settings map[string]interface{} `json:"settings"`
}

// UpdateMetadata defines the public metadata a user may set on their identity provider account.
type UpdateMetadata struct {
	PublicMetadata PublicMetadata `json:"publicMetadata" validate:"required"`
}

func (um *UpdateMetadata) Validate(validate *validator.Validate) error {
	um.PublicMetadata.UserType = core.CleanString(um.PublicMetadata.UserType, true /* lower */)
	return validate.Struct(um)
}

type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
