package chainrun

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error types.
var (
	// ErrNoResults is the error returned when there are no matching nodes.
	ErrNoResults = errors.New("no results")

	// ErrTooManyResults is the error returned when a command requiring a
	// single node matched more than one.
	ErrTooManyResults = errors.New("too many results")

	// ErrNotVisible is the error returned when a non-visible node should be
	// visible.
	ErrNotVisible = errors.New("not visible")

	// ErrDisabled is the error returned when a disabled node should be
	// enabled.
	ErrDisabled = errors.New("disabled")

	// ErrDetached is the error returned when a node is no longer attached to
	// the document.
	ErrDetached = errors.New("detached")

	// ErrOccluded is the error returned when another element covers the
	// point an action would hit.
	ErrOccluded = errors.New("occluded")

	// ErrNotFocused is the error returned when a node should have focus.
	ErrNotFocused = errors.New("not focused")

	// ErrNoProperty is the error returned by providers when a node has no
	// such property.
	ErrNoProperty = errors.New("no such property")

	// ErrPollingTimeout is the error returned when a retried operation did
	// not succeed before its timeout.
	ErrPollingTimeout = errors.New("waiting for predicate timed out")

	// ErrInvalidSubject is the error returned when a command is applied to a
	// subject it cannot handle.
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrUnknownChainer is the error returned for an unregistered chainer.
	ErrUnknownChainer = errors.New("unknown chainer")

	// ErrUnsupported is the error returned when the provider lacks a
	// capability.
	ErrUnsupported = errors.New("unsupported by provider")

	// ErrInvalidSelector is the error returned by providers for selectors
	// that cannot be parsed. It is never retried.
	ErrInvalidSelector = errors.New("invalid selector")
)

// Precondition names an actionability check.
type Precondition string

// Precondition values, in the order they are checked.
const (
	PreconditionDetached   Precondition = "detached"
	PreconditionVisibility Precondition = "visibility"
	PreconditionDisabled   Precondition = "disabled"
	PreconditionOccluded   Precondition = "occluded"
)

// ResolutionError is returned when a locator did not yield the number of
// elements a command needs.
type ResolutionError struct {
	Locator string
	Count   int
	Want    string
	Elapsed time.Duration
	Err     error
}

func (e *ResolutionError) Error() string {
	want := e.Want
	if want == "" {
		want = "at least one element"
	}
	return fmt.Sprintf("expected to find %s for %s but found %d after %s: %v",
		want, e.Locator, e.Count, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ActionPreconditionError is returned when a command's target is not
// interactable.
type ActionPreconditionError struct {
	Command      string
	Precondition Precondition
	Locator      string
	Count        int
	Elapsed      time.Duration
	Err          error
}

func (e *ActionPreconditionError) Error() string {
	return fmt.Sprintf("%s failed %s check on %s (%d elements) after %s: %v",
		e.Command, e.Precondition, e.Locator, e.Count, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ActionPreconditionError) Unwrap() error {
	return e.Err
}

// AssertionTimeout is returned when a chainer never passed within its
// timeout. Actual holds the last observed value.
type AssertionTimeout struct {
	Chainer  string
	Negated  bool
	Expected interface{}
	Actual   interface{}
	Locator  string
	Elapsed  time.Duration
	Diff     string
	Reason   string
}

func (e *AssertionTimeout) Error() string {
	var b strings.Builder
	chainer := e.Chainer
	if e.Negated {
		chainer = "not." + chainer
	}
	fmt.Fprintf(&b, "timed out after %s retrying: expected %s to %s", e.Elapsed.Round(time.Millisecond), e.Locator, chainer)
	if e.Expected != nil {
		fmt.Fprintf(&b, " %s", formatValue(e.Expected))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	} else if e.Actual != nil {
		fmt.Fprintf(&b, ", got %s", formatValue(e.Actual))
	}
	if e.Diff != "" {
		b.WriteString("\n")
		b.WriteString(e.Diff)
	}
	return b.String()
}

func (e *AssertionTimeout) Unwrap() error {
	return ErrPollingTimeout
}

// HookError is returned when a reset or beforeEach hook failed.
type HookError struct {
	Suite string
	Hook  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook in %q failed: %v", e.Hook, e.Suite, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// CommandError wraps a failure of a command that is not one of the kinds
// above.
type CommandError struct {
	Command string
	Locator string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Command, e.Locator, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so that a Poller gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p) || errors.Is(err, ErrInvalidSelector)
}

// ErrorKind classifies err into one of the report kinds.
func ErrorKind(err error) string {
	var (
		re *ResolutionError
		pe *ActionPreconditionError
		at *AssertionTimeout
		he *HookError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &he):
		return "HookError"
	case errors.As(err, &at):
		return "AssertionTimeout"
	case errors.As(err, &pe):
		return "ActionPreconditionError"
	case errors.As(err, &re):
		return "ResolutionError"
	}
	return "Error"
}
