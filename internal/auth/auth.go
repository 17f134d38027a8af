// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth validates sign-in and registration forms and turns a
// successful exchange into a stored identity.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/model"
)

// Mode selects between signing in and creating an account.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

func (m Mode) String() string {
	if m == ModeRegister {
		return "register"
	}
	return "login"
}

// MinPasswordLength applies to new accounts only.
const MinPasswordLength = 6

// FormError is a validation failure shown next to the form.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

// Form is what the user typed.
type Form struct {
	Mode     Mode
	Username string
	Email    string
	Password string
}

type loginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type registerForm struct {
	Username string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

var validate = validator.New()

// Validate checks the form for its mode and returns a *FormError.
func (f Form) Validate() error {
	email := strings.TrimSpace(f.Email)
	if f.Mode == ModeLogin {
		if err := validate.Struct(loginForm{Email: email, Password: f.Password}); err != nil {
			return &FormError{Message: "Email and password are required"}
		}
		return nil
	}

	err := validate.Struct(registerForm{
		Username: strings.TrimSpace(f.Username),
		Email:    email,
		Password: f.Password,
	})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &FormError{Message: err.Error()}
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return &FormError{Message: "All fields are required"}
		}
	}
	switch verrs[0].Field() {
	case "Email":
		return &FormError{Message: "Please enter a valid email address"}
	default:
		return &FormError{Message: "Password must be at least 6 characters"}
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

// Authenticator exchanges credentials. *api.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*model.Identity, error)
	Register(ctx context.Context, username, email, password string) (*model.Identity, error)
}

// IdentityStore persists the signed-in user. *session.Store implements it.
type IdentityStore interface {
	SetIdentity(ctx context.Context, identity model.Identity) error
}

// Submit validates form, authenticates and stores the identity.
func Submit(ctx context.Context, a Authenticator, store IdentityStore, form Form) (model.Identity, error) {
	if err := form.Validate(); err != nil {
		return model.Identity{}, err
	}

	email := strings.TrimSpace(form.Email)
	var (
		identity *model.Identity
		err      error
	)
	if form.Mode == ModeLogin {
		identity, err = a.Login(ctx, email, form.Password)
	} else {
		identity, err = a.Register(ctx, strings.TrimSpace(form.Username), email, form.Password)
	}
	if err != nil {
		return model.Identity{}, err
	}
	if err := store.SetIdentity(ctx, *identity); err != nil {
		return model.Identity{}, err
	}
	return *identity, nil
}

// Message returns the text to show for a Submit error.
func Message(err error) string {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if api.IsInvalidResponse(err) {
		return "Invalid server response format"
	}
	if api.StatusCode(err) != 0 {
		if detail := api.DetailOf(err); detail != "" {
			return detail
		}
		return "Authentication failed"
	}
	return api.DetailOf(err)
}
