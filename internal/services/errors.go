// Package services defines the business logic for redirect resolution, rule
// management, reconciliation, and per-shop settings. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrMissingShop is returned when an operation is attempted without a
	// shop (tenant) identifier.
	ErrMissingShop = errors.New("shop domain is required")

	// ErrMissingPath is returned when a resolution or rule operation lacks
	// the path it applies to.
	ErrMissingPath = errors.New("path is required")

	// ErrMissingDestination is returned when a rule or auto-fix policy is
	// submitted without a destination path.
	ErrMissingDestination = errors.New("destination path is required")

	// ErrInvalidPattern wraps pattern compilation failures surfaced at rule
	// creation time (no wildcard, multiple wildcards, blank pattern).
	ErrInvalidPattern = errors.New("invalid wildcard pattern")

	// ErrDuplicateRule is returned when an active rule already exists for the
	// same natural key (shop + from_path or shop + pattern).
	ErrDuplicateRule = errors.New("rule already exists")

	// ErrInvalidFrequency is returned when a notification setting carries a
	// frequency outside daily/weekly/monthly.
	ErrInvalidFrequency = errors.New("frequency must be daily, weekly, or monthly")

	// ErrMissingEmail is returned when a notification setting has no address.
	ErrMissingEmail = errors.New("email is required")
)
