package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrAccessDenied and ErrRateLimitExceeded are the two guard failure kinds.
// Callers must be able to tell them apart: access failures are never retried,
// quota failures may be retried in a later window.
var (
	ErrAccessDenied      = errors.New("access denied")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
