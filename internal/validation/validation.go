// Package validation provides structured validation error handling
package validation

import (
	"fmt"
	"strings"
)

// Error represents a validation error with field-specific details
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors represents multiple validation errors
type Errors []Error

// Error implements the error interface
func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}

	var messages []string
	for _, err := range ve {
		if err.Field != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
		} else {
			messages = append(messages, err.Message)
		}
	}

	return strings.Join(messages, "; ")
}

// Add adds a validation error
func (ve *Errors) Add(field, message string) {
	*ve = append(*ve, Error{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors
func (ve Errors) HasErrors() bool {
	return len(ve) > 0
}

// ValidateRequired checks if a value is not empty
func ValidateRequired(value string, fieldName string) *Error {
	if strings.TrimSpace(value) == "" {
		return &Error{
			Field:   fieldName,
			Message: "is required",
		}
	}
	return nil
}

// ValidateOneOf checks that a value is one of an enumerated set
func ValidateOneOf(value string, allowed []string, fieldName string) *Error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &Error{
		Field:   fieldName,
		Message: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
	}
}

// ValidateURL checks that a value looks like an absolute http(s) URL or a
// custom app scheme
func ValidateURL(value string, fieldName string) *Error {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return nil
	}
	// Mobile clients register custom schemes like app://oauth-complete/
	if strings.Contains(value, "://") {
		return nil
	}
	return &Error{
		Field:   fieldName,
		Message: "must be an absolute URL",
	}
}

// InitiateValidation validates authorization initiation parameters
type InitiateValidation struct {
	RedirectURI string
	Platform    string
}

// Validate validates initiation fields
func (iv *InitiateValidation) Validate() error {
	var errors Errors

	if err := ValidateRequired(iv.RedirectURI, "redirectUri"); err != nil {
		errors.Add(err.Field, err.Message)
	} else if err := ValidateURL(iv.RedirectURI, "redirectUri"); err != nil {
		errors.Add(err.Field, err.Message)
	}

	if iv.Platform != "" {
		if err := ValidateOneOf(iv.Platform, []string{"web", "mobile"}, "platform"); err != nil {
			errors.Add(err.Field, err.Message)
		}
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ExchangeValidation validates direct token exchange parameters
type ExchangeValidation struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
}

// Validate validates exchange fields
func (ev *ExchangeValidation) Validate() error {
	var errors Errors

	if err := ValidateRequired(ev.Code, "code"); err != nil {
		errors.Add(err.Field, err.Message)
	}
	if err := ValidateRequired(ev.CodeVerifier, "codeVerifier"); err != nil {
		errors.Add(err.Field, err.Message)
	}
	if err := ValidateRequired(ev.RedirectURI, "redirectUri"); err != nil {
		errors.Add(err.Field, err.Message)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// RefreshValidation validates token refresh parameters
type RefreshValidation struct {
	RefreshToken string
}

// Validate validates refresh fields
func (rv *RefreshValidation) Validate() error {
	var errors Errors

	if err := ValidateRequired(rv.RefreshToken, "refreshToken"); err != nil {
		errors.Add(err.Field, err.Message)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ProxyValidation validates proxy invocation parameters
type ProxyValidation struct {
	Endpoint    string
	Method      string
	AccessToken string
}

// Validate validates proxy fields
func (pv *ProxyValidation) Validate() error {
	var errors Errors

	if err := ValidateRequired(pv.Endpoint, "endpoint"); err != nil {
		errors.Add(err.Field, err.Message)
	}
	if err := ValidateRequired(pv.AccessToken, "accessToken"); err != nil {
		errors.Add(err.Field, err.Message)
	}
	if pv.Method != "" {
		if err := ValidateOneOf(strings.ToUpper(pv.Method), []string{"GET", "POST", "PUT", "DELETE", "PATCH"}, "method"); err != nil {
			errors.Add(err.Field, err.Message)
		}
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}
