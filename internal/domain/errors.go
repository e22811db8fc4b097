package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoCompatibleVersion = errors.New("no compatible version found")
	ErrNotFound            = errors.New("not found")
	ErrDistributionDenied  = errors.New("project author denied third-party distribution")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrNetwork             = errors.New("network error")
	ErrAuthRequired        = errors.New("authentication required")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
)

// DistributionDeniedError carries the page a user can download the file from by hand
type DistributionDeniedError struct {
	Project string
	FileID  string
	URL     string
}

func (e *DistributionDeniedError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %s", ErrDistributionDenied, e.Project)
	}
	return fmt.Sprintf("%s: download %s manually from %s", ErrDistributionDenied, e.Project, e.URL)
}

func (e *DistributionDeniedError) Is(target error) bool {
	return target == ErrDistributionDenied
}

// RateLimitError is returned when a platform refuses further requests.
// It stops the whole session.
type RateLimitError struct {
	Platform Platform
	ResetAt  time.Time // Zero if the platform did not say
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("%s: %s", e.Platform, ErrRateLimited)
	}
	return fmt.Sprintf("%s: %s (resets at %s)", e.Platform, ErrRateLimited, e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// FailureKind classifies why a source could not be resolved
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNoCompatibleVersion
	FailureNotFound
	FailureDistributionDenied
	FailureRateLimited
	FailureNetwork
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNoCompatibleVersion:
		return "no compatible version"
	case FailureNotFound:
		return "not found"
	case FailureDistributionDenied:
		return "distribution denied"
	case FailureRateLimited:
		return "rate limited"
	default:
		return "network error"
	}
}

// Classify maps err onto the resolution failure taxonomy.
// Errors that match no known kind count as network errors.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimited
	case errors.Is(err, ErrDistributionDenied):
		return FailureDistributionDenied
	case errors.Is(err, ErrNoCompatibleVersion):
		return FailureNoCompatibleVersion
	case errors.Is(err, ErrNotFound):
		return FailureNotFound
	default:
		return FailureNetwork
	}
}
