package services

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique field is already taken
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredentials is returned for a wrong email/password pair
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidInput wraps validation failures; handlers map it to 400
	ErrInvalidInput = errors.New("invalid input")

	// ErrPaymentsDisabled is returned when no payment provider is configured
	ErrPaymentsDisabled = errors.New("payments are not configured")
)
