package chainrun

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mailru/easyjson/jwriter"
)

// Reporter receives case results as they are final and the report at the
// end of a run. Results arrive in declaration order.
type Reporter interface {
	CaseDone(res CaseResult)
	RunDone(rep *Report) error
}

// NewReporter returns the reporter named name: "spec" or "json".
func NewReporter(name string, w io.Writer, noColor bool) (Reporter, error) {
	switch name {
	case "", "spec":
		return NewSpecReporter(w, noColor), nil
	case "json":
		return NewJSONReporter(w), nil
	}
	return nil, fmt.Errorf("unknown reporter %q", name)
}

// SpecReporter prints a nested, colored list of cases followed by the
// failures.
type SpecReporter struct {
	mu       sync.Mutex
	w        io.Writer
	path     []string
	failures []CaseResult

	pass, fail, skip, dim *color.Color
}

// NewSpecReporter creates a spec reporter writing to w.
func NewSpecReporter(w io.Writer, noColor bool) *SpecReporter {
	r := &SpecReporter{
		w:    w,
		pass: color.New(color.FgGreen),
		fail: color.New(color.FgRed),
		skip: color.New(color.FgCyan),
		dim:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.pass, r.fail, r.skip, r.dim} {
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return r
}

func indent(depth int) string {
	return strings.Repeat("  ", depth+1)
}

// CaseDone satisfies Reporter.
func (r *SpecReporter) CaseDone(res CaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	common := 0
	for common < len(r.path) && common < len(res.Path) && r.path[common] == res.Path[common] {
		common++
	}
	for i := common; i < len(res.Path); i++ {
		fmt.Fprintf(r.w, "%s%s\n", indent(i), res.Path[i])
	}
	r.path = res.Path

	pad := indent(len(res.Path))
	switch res.State {
	case StatePassed:
		fmt.Fprintf(r.w, "%s%s %s %s\n", pad, r.pass.Sprint("✓"), res.Name, r.dim.Sprintf("(%s)", res.Duration.Round(time.Millisecond)))
	case StateSkipped:
		fmt.Fprintf(r.w, "%s%s\n", pad, r.skip.Sprintf("- %s", res.Name))
	default:
		r.failures = append(r.failures, res)
		fmt.Fprintf(r.w, "%s%s\n", pad, r.fail.Sprintf("%d) %s", len(r.failures), res.Name))
	}
}

// RunDone satisfies Reporter.
func (r *SpecReporter) RunDone(rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := rep.Summary()
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "  %s %s\n", r.pass.Sprintf("%d passing", s.Passed), r.dim.Sprintf("(%s)", rep.Duration.Round(time.Millisecond)))
	if s.Failed > 0 {
		fmt.Fprintf(r.w, "  %s\n", r.fail.Sprintf("%d failing", s.Failed))
	}
	if s.Errored > 0 {
		fmt.Fprintf(r.w, "  %s\n", r.fail.Sprintf("%d errored", s.Errored))
	}
	if s.Skipped > 0 {
		fmt.Fprintf(r.w, "  %s\n", r.skip.Sprintf("%d pending", s.Skipped))
	}
	if rep.Aborted {
		fmt.Fprintf(r.w, "  %s\n", r.fail.Sprint("run aborted"))
	}
	for i, f := range r.failures {
		fmt.Fprintf(r.w, "\n  %d) %s:\n", i+1, strings.Join(append(append([]string{}, f.Path...), f.Name), " "))
		fmt.Fprintf(r.w, "     %s\n", r.fail.Sprintf("%s: %s", f.ErrorKind, strings.ReplaceAll(f.Message, "\n", "\n     ")))
		if f.Expected != "" || f.Actual != "" {
			fmt.Fprintf(r.w, "     %s %s\n", r.pass.Sprint("+ expected"), f.Expected)
			fmt.Fprintf(r.w, "     %s %s\n", r.fail.Sprint("- actual"), f.Actual)
		}
	}
	_, err := fmt.Fprintln(r.w)
	return err
}

// JSONReporter writes one JSON object per case, then one for the run.
type JSONReporter struct {
	mu  sync.Mutex
	w   io.Writer
	err error // first failed case write
}

// NewJSONReporter creates a JSON lines reporter writing to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{w: w}
}

func (r *JSONReporter) write(v interface{ MarshalEasyJSON(*jwriter.Writer) }) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out jwriter.Writer
	v.MarshalEasyJSON(&out)
	out.RawByte('\n')
	if out.Error != nil {
		return out.Error
	}
	_, err := out.DumpTo(r.w)
	return err
}

// CaseDone satisfies Reporter. A write error is kept and returned by
// RunDone.
func (r *JSONReporter) CaseDone(res CaseResult) {
	if err := r.write(res); err != nil {
		r.mu.Lock()
		if r.err == nil {
			r.err = fmt.Errorf("writing case %q: %w", res.Name, err)
		}
		r.mu.Unlock()
	}
}

// RunDone satisfies Reporter.
func (r *JSONReporter) RunDone(rep *Report) error {
	err := r.write(rep)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	return err
}
