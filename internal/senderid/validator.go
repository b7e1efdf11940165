// Package senderid provides sender identifier validation.
//
// A sender ID is the alphanumeric label recipients see as the SMS
// sender. Validation is a pure function so the single-send, bulk-send,
// OTP and submission paths all produce identical error codes.
package senderid

// Result is the outcome of validating a raw sender ID string.
type Result int

const (
	// Valid means the value may be submitted or dispatched.
	Valid Result = iota
	// Missing means the value was absent or empty.
	Missing
	// InvalidFormat means the value violates length or charset rules.
	InvalidFormat
)

// String returns the machine-readable name of the result.
func (r Result) String() string {
	switch r {
	case Valid:
		return "VALID"
	case Missing:
		return "MISSING"
	case InvalidFormat:
		return "INVALID_FORMAT"
	default:
		return "UNKNOWN"
	}
}

// Length bounds for sender IDs, per carrier alphanumeric sender rules.
const (
	MinLength = 3
	MaxLength = 11
)

// Validate checks a raw sender ID string. Rules, in order:
//  1. empty -> Missing
//  2. length outside [3,11] -> InvalidFormat
//  3. any byte outside [A-Za-z0-9] -> InvalidFormat
//
// Length is counted in bytes, so any multi-byte rune both inflates the
// length and fails the charset check.
func Validate(value string) Result {
	if value == "" {
		return Missing
	}
	if len(value) < MinLength || len(value) > MaxLength {
		return InvalidFormat
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if !isAlnum(c) {
			return InvalidFormat
		}
	}
	return Valid
}

// IsValid is a convenience wrapper for callers that only need a bool.
func IsValid(value string) bool {
	return Validate(value) == Valid
}

func isAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
