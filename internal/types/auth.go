// Package types provides the wire types exchanged with the SRA recommendation backend.
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// LoginRequest represents the login request sent to POST /login.
type LoginRequest struct {
	Matricula string `json:"matricula" validate:"required,notblank"`
	Senha     string `json:"senha" validate:"required,notblank"`
}

// Token represents the login response with the bearer token issued by the backend.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Nome        string `json:"nome,omitempty"`
	// HasProfile is nil when the backend does not report it.
	HasProfile *bool `json:"has_profile,omitempty"`
}

// NeedsProfile reports whether the student must fill the preference profile first.
func (t *Token) NeedsProfile() bool {
	return t.HasProfile != nil && !*t.HasProfile
}

var validate = newValidator()

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	return validate.Struct(r)
}

// newValidator returns a validator with the custom tags used by this package.
func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or nil func, neither applies here.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}
