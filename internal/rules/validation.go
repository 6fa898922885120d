// Package rules carries the structured rejection returned by the engines
// when a requested action breaks a game rule.
package rules

import "fmt"

// Code is a machine-readable rejection code.
type Code string

const (
	// Credit
	CodeInvalidAmount   Code = "LOAN_INVALID_AMOUNT"
	CodeExceedsCapacity Code = "LOAN_EXCEEDS_CAPACITY"
	CodeRatingTooLow    Code = "LOAN_RATING_TOO_LOW"

	// Staffing
	CodeBusinessFull   Code = "HIRE_BUSINESS_FULL"
	CodeRoleCapReached Code = "HIRE_ROLE_CAP_REACHED"
	CodeUnknownRole    Code = "HIRE_UNKNOWN_ROLE"

	// Business state
	CodeBusinessInactive Code = "BUSINESS_INACTIVE"
)

// Validation is the outcome of a rule check. Details is safe to show to the
// player and to serialize.
type Validation struct {
	IsValid bool           `json:"is_valid"`
	Error   string         `json:"error,omitempty"`
	Code    Code           `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func OK(details map[string]any) Validation {
	return Validation{IsValid: true, Details: details}
}

func Reject(code Code, message string, details map[string]any) Validation {
	return Validation{IsValid: false, Error: message, Code: code, Details: details}
}

// Err converts a rejection into an error; a valid result yields nil.
func (v Validation) Err() error {
	if v.IsValid {
		return nil
	}
	return &RejectionError{Code: v.Code, Message: v.Error}
}

// RejectionError is a rejected Validation travelling as an error.
type RejectionError struct {
	Code    Code
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches by code so callers can test with errors.Is.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Code == e.Code
}
