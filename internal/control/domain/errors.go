package domain

import "errors"

var (
	// ErrInvalidDomain is returned when an empty or malformed domain reaches
	// the engine. Callers normalize input before evaluating; this is never a
	// bypass path.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrStoreUnavailable wraps storage failures on decision-relevant reads.
	// Callers must fail closed: treat the attempt as blocked, never allowed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned by store lookups for missing records.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken is returned when creating or renaming a user would
	// duplicate an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)
