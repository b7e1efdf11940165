package provider

import "errors"

// Sentinel errors for upstream dispatch outcomes.
var (
	// ErrRejected means the provider answered but did not accept the message.
	ErrRejected = errors.New("provider rejected message")

	// ErrTimeout means the provider did not answer within the deadline.
	ErrTimeout = errors.New("provider timed out")
)
