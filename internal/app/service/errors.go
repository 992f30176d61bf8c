package service

import "errors"

var (
	// ErrInvalidURL signals the target is not an absolute http/https URL.
	ErrInvalidURL = errors.New("invalid or missing url")
	// ErrInvalidValidity signals a non-positive validity period.
	ErrInvalidValidity = errors.New("validity must be a positive integer")
	// ErrInvalidShortcode signals a requested code with a bad format.
	ErrInvalidShortcode = errors.New("shortcode has invalid format")
	// ErrShortcodeTaken signals the requested code already exists.
	ErrShortcodeTaken = errors.New("shortcode already exists")
	// ErrGenerationExhausted signals the generate-and-insert loop ran out
	// of attempts without finding a free code.
	ErrGenerationExhausted = errors.New("unable to generate an unused shortcode")
	// ErrCodeRequired signals an empty code after trimming.
	ErrCodeRequired = errors.New("shortcode required")
	// ErrLinkExpired signals the link exists but is past its expiry.
	ErrLinkExpired = errors.New("short link expired")
)
