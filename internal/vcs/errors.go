package vcs

import (
	"errors"
	"fmt"
)

// Output captures the textual result of a git invocation.
type Output struct {
	Stdout string
	Stderr string
}

// Sentinel errors forming the classified error taxonomy. Ref: spec §7.
var (
	// ErrRefFailedToPush means the remote rejected our compare-and-swap push
	// because another writer had already advanced the canonical ref. Transient.
	ErrRefFailedToPush = errors.New("a ref failed to be pushed")

	// ErrRefFailedToLock means a local ref transaction could not acquire a
	// lock. Transient.
	ErrRefFailedToLock = errors.New("a ref failed to be locked")

	// ErrRefConcurrentModification means a verify clause in a ref transaction
	// observed an unexpected oid. Transient.
	ErrRefConcurrentModification = errors.New("a concurrent change to the ref occurred")

	// ErrBadObject means a transient object-lookup failure, e.g. mid-GC.
	// Transient.
	ErrBadObject = errors.New("bad object")

	// ErrShallowRepository means the operation is forbidden on a shallow
	// clone. Permanent.
	ErrShallowRepository = errors.New("shallow repository, refusing operation")

	// ErrMissingHead means the required committish could not be resolved.
	// Permanent.
	ErrMissingHead = errors.New("missing HEAD or committish")

	// ErrNoRemoteMeasurements means the remote has no canonical ref yet.
	// Permanent.
	ErrNoRemoteMeasurements = errors.New("remote repository is empty or has never been pushed to, push some measurements first")

	// ErrNoUpstream means no configured remote is suitable for measurements.
	// Permanent.
	ErrNoUpstream = errors.New("no upstream found, consider setting origin or the measurements remote")

	// ErrMissingMeasurements means a push was requested with nothing to push.
	// Permanent.
	ErrMissingMeasurements = errors.New("this repo does not have any measurements")

	// ErrExec is an unclassified git failure. Permanent (fail-loud).
	ErrExec = errors.New("git failed to execute")
)

// ExecError wraps a failed invocation of the git binary, carrying its
// captured output for classification and diagnostics.
type ExecError struct {
	Command []string
	Output  Output
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("git %v failed\nstdout:\n%s\nstderr:\n%s", e.Command, e.Output.Stdout, e.Output.Stderr)
}

func (e *ExecError) Unwrap() error {
	return ErrExec
}

// classifiedError pairs a sentinel from the taxonomy with the output that
// produced it, so callers retain diagnostics while still being able to use
// errors.Is against the sentinel.
type classifiedError struct {
	sentinel error
	output   Output
}

func (e *classifiedError) Error() string {
	if e.output.Stdout == "" && e.output.Stderr == "" {
		return e.sentinel.Error()
	}

	return fmt.Sprintf("%s:\nstdout:\n%s\nstderr:\n%s", e.sentinel.Error(), e.output.Stdout, e.output.Stderr)
}

func (e *classifiedError) Unwrap() error {
	return e.sentinel
}

func classified(sentinel error, output Output) error {
	return &classifiedError{sentinel: sentinel, output: output}
}

// MissingHeadError carries the unresolved reference name.
type MissingHeadError struct {
	Reference string
}

func (e *MissingHeadError) Error() string {
	return fmt.Sprintf("missing HEAD for %s", e.Reference)
}

func (e *MissingHeadError) Unwrap() error {
	return ErrMissingHead
}

// IsTransient reports whether err belongs to the transient class of the
// retry-eligible taxonomy (spec §4.5): RefFailedToPush, RefFailedToLock,
// RefConcurrentModification, BadObject.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, ErrRefFailedToPush),
		errors.Is(err, ErrRefFailedToLock),
		errors.Is(err, ErrRefConcurrentModification),
		errors.Is(err, ErrBadObject):
		return true
	default:
		return false
	}
}
