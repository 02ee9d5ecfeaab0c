package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "cdm/internal/errors"
)

const passwordSpecialChars = "@$!%*?&"

var validationMessages = map[string]string{
	"email.required":           "Email is required",
	"email.email":              "Invalid email format",
	"email.max":                "Email must not exceed 255 characters",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least 8 characters",
	"password.max":             "Password must not exceed 72 characters",
	"password.strongpassword":  "Password must contain at least 1 uppercase letter, 1 lowercase letter, 1 digit, and 1 special character",
	"confirmPassword.required": "Password confirmation is required",
	"confirmPassword.eqfield":  "Passwords do not match",
	"nickname.required":        "Nickname is required",
	"nickname.min":             "Nickname is required",
	"nickname.max":             "Nickname must not exceed 50 characters",
	"username.required":        "Username is required",
	"username.min":             "Username must be between 3 and 30 characters",
	"username.max":             "Username must be between 3 and 30 characters",
	"preferences.json":         "Preferences must be valid JSON",
}

// Validator runs struct-tag validation and reports failures keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the custom password rule registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Validate returns nil or a *apperrors.ValidationError.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := apperrors.NewValidationError()
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	if msg, ok := validationMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}

// IsStrongPassword reports whether password holds at least one lowercase letter,
// one uppercase letter, one digit and one of @$!%*?&, and nothing else.
func IsStrongPassword(password string) bool {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}
