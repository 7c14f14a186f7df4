package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
)

// Theme 是界面主题，只允许 dark 或 light。
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Valid reports whether the theme is one of the two enumerated values.
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}

// User is the per-browser profile created when a persona is picked.
type User struct {
	ID            string                `json:"id"`
	CharacterType persona.CharacterType `json:"characterType"`
	Personality   persona.Personality   `json:"personality,omitempty"`
	Theme         Theme                 `json:"theme"`
}

// CreateUserRequest is the body of the create-user endpoint.
type CreateUserRequest struct {
	CharacterType persona.CharacterType `json:"characterType" validate:"required,oneof=AI-GF AI-BF"`
	Personality   persona.Personality   `json:"personality" validate:"omitempty,oneof=romantic funny supportive"`
	Theme         Theme                 `json:"theme" validate:"required,oneof=dark light"`
}

// UpdateThemeRequest is the body of the patch-theme endpoint.
type UpdateThemeRequest struct {
	Theme Theme `json:"theme" validate:"required,oneof=dark light"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the declarative field rules.
func (r CreateUserRequest) Validate() error {
	return validate.Struct(r)
}

// Validate checks the declarative field rules.
func (r UpdateThemeRequest) Validate() error {
	return validate.Struct(r)
}

// ToUser converts the request into a user without an identifier.
func (r CreateUserRequest) ToUser() User {
	return User{
		CharacterType: r.CharacterType,
		Personality:   r.Personality,
		Theme:         r.Theme,
	}
}
