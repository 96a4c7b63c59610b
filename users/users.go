package users

import (
	"time"

	"github.com/jrsteele09/reconfile-dashboard/internal/utils"
)

// RoleType names a permission set granted by the API
type RoleType string

const (
	RoleAdmin RoleType = "admin"
	RoleUser  RoleType = "user"
)

// AccessLevel orders what a user may see, higher sees more
type AccessLevel int

// Reference points at a related store or franchise
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Confirmed   bool        `json:"confirmed"`
	AccessLevel AccessLevel `json:"accessLevel"`
	Roles       []RoleType  `json:"roles"`
	IsActive    bool        `json:"isActive"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Store       *Reference  `json:"store,omitempty"`
	Franchise   *Reference  `json:"franchise,omitempty"`
}

// HasRole checks if the user holds the given role
func (u *User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin checks if the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Initials is the avatar text shown in the header
func (u *User) Initials() string {
	return utils.Initials(u.Name)
}

// MemberSince renders the account creation date
func (u *User) MemberSince() string {
	return utils.FormatDate(u.CreatedAt)
}
