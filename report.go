package chainrun

import (
	"errors"
	"time"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/chromedp/chainrun/internal/errext/exitcodes"
)

// CaseState is the lifecycle state of a case.
type CaseState string

// CaseState values.
const (
	StateIdle    CaseState = "idle"
	StateSetup   CaseState = "setup"
	StateRunning CaseState = "running"
	StatePassed  CaseState = "passed"
	StateFailed  CaseState = "failed"
	StateErrored CaseState = "errored"
	StateSkipped CaseState = "skipped"
)

// String satisfies fmt.Stringer.
func (s CaseState) String() string {
	return string(s)
}

// Done reports whether s is a final state.
func (s CaseState) Done() bool {
	switch s {
	case StatePassed, StateFailed, StateErrored, StateSkipped:
		return true
	}
	return false
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (s CaseState) MarshalEasyJSON(out *jwriter.Writer) {
	out.String(string(s))
}

// MarshalJSON satisfies json.Marshaler.
func (s CaseState) MarshalJSON() ([]byte, error) {
	return easyjson.Marshal(s)
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (s *CaseState) UnmarshalEasyJSON(in *jlexer.Lexer) {
	switch v := CaseState(in.String()); v {
	case StateIdle, StateSetup, StateRunning, StatePassed, StateFailed, StateErrored, StateSkipped:
		*s = v
	default:
		in.AddError(errors.New("unknown case state " + string(v)))
	}
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (s *CaseState) UnmarshalJSON(buf []byte) error {
	return easyjson.Unmarshal(buf, s)
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Path     []string
	Name     string
	State    CaseState
	Duration time.Duration
	// ErrorKind is one of ResolutionError, ActionPreconditionError,
	// AssertionTimeout, HookError or Error.
	ErrorKind string
	Message   string
	Expected  string
	Actual    string
	Diff      string
	Err       error
}

// newCaseResult fills the error fields of a result from err.
func newCaseResult(c *Case, state CaseState, d time.Duration, err error) CaseResult {
	res := CaseResult{
		Path:     c.suite.Path(),
		Name:     c.Name,
		State:    state,
		Duration: d,
		Err:      err,
	}
	if err == nil {
		return res
	}
	res.ErrorKind = ErrorKind(err)
	res.Message = err.Error()
	var at *AssertionTimeout
	if errors.As(err, &at) {
		if at.Expected != nil {
			res.Expected = formatValue(at.Expected)
		}
		res.Actual = formatValue(at.Actual)
		res.Diff = at.Diff
	}
	return res
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (r CaseResult) MarshalEasyJSON(out *jwriter.Writer) {
	out.RawString(`{"path":`)
	out.RawByte('[')
	for i, p := range r.Path {
		if i > 0 {
			out.RawByte(',')
		}
		out.String(p)
	}
	out.RawByte(']')
	out.RawString(`,"name":`)
	out.String(r.Name)
	out.RawString(`,"state":`)
	r.State.MarshalEasyJSON(out)
	out.RawString(`,"durationMs":`)
	out.Int64(r.Duration.Milliseconds())
	if r.ErrorKind != "" {
		out.RawString(`,"errorKind":`)
		out.String(r.ErrorKind)
		out.RawString(`,"message":`)
		out.String(r.Message)
	}
	if r.Expected != "" {
		out.RawString(`,"expected":`)
		out.String(r.Expected)
	}
	if r.Actual != "" {
		out.RawString(`,"actual":`)
		out.String(r.Actual)
	}
	if r.Diff != "" {
		out.RawString(`,"diff":`)
		out.String(r.Diff)
	}
	out.RawByte('}')
}

// MarshalJSON satisfies json.Marshaler.
func (r CaseResult) MarshalJSON() ([]byte, error) {
	return easyjson.Marshal(r)
}

// Summary counts cases per final state.
type Summary struct {
	Passed, Failed, Errored, Skipped int
}

// Report is the outcome of a run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Cases    []CaseResult
	// Aborted is set when the run was cancelled before every case ran.
	Aborted bool
}

// Summary counts the cases per state.
func (r *Report) Summary() Summary {
	var s Summary
	for _, c := range r.Cases {
		switch c.State {
		case StatePassed:
			s.Passed++
		case StateFailed:
			s.Failed++
		case StateErrored:
			s.Errored++
		case StateSkipped:
			s.Skipped++
		}
	}
	return s
}

// OK reports whether no case failed or errored.
func (r *Report) OK() bool {
	s := r.Summary()
	return s.Failed == 0 && s.Errored == 0
}

// ExitCode returns the process exit code for the report: non-zero when
// any case failed or errored, or when the run was aborted.
func (r *Report) ExitCode() exitcodes.ExitCode {
	switch {
	case r.Aborted:
		return exitcodes.RunAborted
	case !r.OK():
		return exitcodes.CasesFailed
	}
	return exitcodes.OK
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (r *Report) MarshalEasyJSON(out *jwriter.Writer) {
	s := r.Summary()
	out.RawString(`{"runId":`)
	out.String(r.RunID)
	out.RawString(`,"started":`)
	out.String(r.Started.UTC().Format(time.RFC3339Nano))
	out.RawString(`,"durationMs":`)
	out.Int64(r.Duration.Milliseconds())
	out.RawString(`,"aborted":`)
	out.Bool(r.Aborted)
	out.RawString(`,"passed":`)
	out.Int(s.Passed)
	out.RawString(`,"failed":`)
	out.Int(s.Failed)
	out.RawString(`,"errored":`)
	out.Int(s.Errored)
	out.RawString(`,"skipped":`)
	out.Int(s.Skipped)
	out.RawString(`,"cases":[`)
	for i, c := range r.Cases {
		if i > 0 {
			out.RawByte(',')
		}
		c.MarshalEasyJSON(out)
	}
	out.RawString(`]}`)
}

// MarshalJSON satisfies json.Marshaler.
func (r *Report) MarshalJSON() ([]byte, error) {
	return easyjson.Marshal(r)
}
