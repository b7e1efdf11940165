// Package middleware provides HTTP middleware for the Textship API.
package middleware

import (
	"errors"
	"regexp"
	"strings"
)

// Validation limits.
const (
	// MaxMessageLength caps a single message body. Long bodies are
	// split into segments upstream; this bound keeps abuse out.
	MaxMessageLength = 1600

	// MaxPhoneLength is the maximum length for a recipient number.
	MaxPhoneLength = 16

	// MinPhoneDigits is the minimum number of digits in a recipient.
	MinPhoneDigits = 7

	// MaxRoutePathLength is the maximum length for client route paths.
	MaxRoutePathLength = 200
)

// Validation errors.
var (
	ErrPhoneInvalid     = errors.New("recipient number is invalid")
	ErrPhoneTooLong     = errors.New("recipient number exceeds maximum length")
	ErrMessageEmpty     = errors.New("message body is required")
	ErrMessageTooLong   = errors.New("message body exceeds maximum length")
	ErrRoutePathInvalid = errors.New("route path is invalid")
	ErrRoutePathTooLong = errors.New("route path exceeds maximum length")
)

// phonePattern matches E.164-style numbers with an optional leading +.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// routePathPattern matches URL path segments without traversal tricks.
var routePathPattern = regexp.MustCompile(`^/[a-zA-Z0-9/_.-]*$`)

// ValidatePhone validates a recipient phone number.
func ValidatePhone(phone string) error {
	if len(phone) > MaxPhoneLength {
		return ErrPhoneTooLong
	}
	if !phonePattern.MatchString(phone) {
		return ErrPhoneInvalid
	}
	return nil
}

// ValidateMessage validates an SMS message body.
func ValidateMessage(message string) error {
	if message == "" {
		return ErrMessageEmpty
	}
	if len(message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ValidateRoutePath validates a client-registered route path.
func ValidateRoutePath(path string) error {
	if len(path) > MaxRoutePathLength {
		return ErrRoutePathTooLong
	}
	if !routePathPattern.MatchString(path) {
		return ErrRoutePathInvalid
	}
	if strings.Contains(path, "..") || strings.Contains(path, "//") {
		return ErrRoutePathInvalid
	}
	return nil
}
