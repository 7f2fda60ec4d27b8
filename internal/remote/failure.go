package remote

import (
	"errors"
	"fmt"
)

// Reason categorizes a remote failure.
type Reason string

const (
	ReasonNotFound     Reason = "not-found"
	ReasonAccessDenied Reason = "access-denied"
	ReasonNetwork      Reason = "network"
	ReasonIntegrity    Reason = "integrity"
	ReasonUnknown      Reason = "unknown"
)

// Failure is the error type returned by [Client.FetchMetadata].
type Failure struct {
	Name   string
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("remote %s: %s", f.Name, f.Reason)
	}
	return fmt.Sprintf("remote %s: %s: %v", f.Name, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// ReasonOf returns the failure reason carried by err, or [ReasonUnknown].
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ReasonUnknown
}
