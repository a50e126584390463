// Package loader reads suites declared in YAML.
//
// A file declares one suite:
//
//	describe: Querying
//	beforeEach:
//	  - visit: /commands/querying
//	it:
//	  - name: finds the button
//	    steps:
//	      - [{get: "#query-btn"}, {should: [contain, Button]}]
//	context:
//	  - describe: Nested
//	    it: [...]
//
// A step is a chain of commands run left to right. The first command of a
// step starts the chain (get, contains, visit, window...); the others apply
// to the chain built so far. Arguments are a scalar, a list, or a list
// ending with an options map (force, multiple, delay, timeout, position, x,
// y, easing, duration). Durations are milliseconds or Go durations.
// Strings written /pattern/flags are regular expressions in contains,
// should and and.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/chromedp/chainrun"
)

// Error is a load error with the position of the offending declaration.
type Error struct {
	File  string
	Suite []string
	Case  string
	// Step is the 1-based index of the step within its case or hook list,
	// zero when the error is not about a step.
	Step int
	Line int
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	if len(e.Suite) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Suite, " "))
	}
	if e.Case != "" {
		fmt.Fprintf(&b, ": %s", e.Case)
	}
	if e.Step > 0 {
		fmt.Fprintf(&b, ": step %d", e.Step)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnknownCommand is wrapped by errors for commands that do not exist.
var ErrUnknownCommand = errors.New("unknown command")

// Load reads the suites declared by paths. A directory path loads every
// .yaml and .yml file below it in lexical order.
func Load(fs afero.Fs, paths ...string) ([]*chainrun.Suite, error) {
	var files []string
	for _, p := range paths {
		fi, err := fs.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		err = afero.Walk(fs, p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if ext := filepath.Ext(path); !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	suites := make([]*chainrun.Suite, 0, len(files))
	for _, f := range files {
		data, err := afero.ReadFile(fs, f)
		if err != nil {
			return nil, err
		}
		s, err := LoadBytes(f, data)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// LoadBytes reads the suite declared by data. name is used in errors.
func LoadBytes(name string, data []byte) (*chainrun.Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sf suiteFile
	if err := dec.Decode(&sf); err != nil {
		return nil, &Error{File: name, Err: err}
	}
	c := &compiler{file: name}
	root := chainrun.Describe(sf.Describe, nil)
	if err := c.suite(root, sf); err != nil {
		return nil, err
	}
	return root, nil
}

// compiler turns decoded files into suites, validating every command up
// front so a malformed file fails before anything runs.
type compiler struct {
	file string
}

func (c *compiler) errorf(s *chainrun.Suite, caseName string, step stepFile, index int, err error) error {
	return &Error{File: c.file, Suite: s.Path(), Case: caseName, Step: index, Line: step.Line, Err: err}
}

func (c *compiler) suite(s *chainrun.Suite, sf suiteFile) error {
	if sf.Describe == "" {
		return &Error{File: c.file, Suite: s.Path(), Err: errors.New("suite without describe")}
	}
	if len(sf.BeforeEach) > 0 {
		hook, err := c.steps(sf.BeforeEach, func(i int, step stepFile, err error) error {
			return c.errorf(s, "beforeEach", step, i+1, err)
		})
		if err != nil {
			return err
		}
		s.BeforeEach(hook)
	}
	for _, cf := range sf.It {
		if cf.Name == "" {
			return &Error{File: c.file, Suite: s.Path(), Line: cf.Line, Err: errors.New("case without name")}
		}
		name := cf.Name
		body, err := c.steps(cf.Steps, func(i int, step stepFile, err error) error {
			return c.errorf(s, name, step, i+1, err)
		})
		if err != nil {
			return err
		}
		if cf.Skip {
			s.Skip(name, body)
		} else {
			s.It(name, body)
		}
	}
	for _, child := range sf.Context {
		if err := c.suite(s.Describe(child.Describe, nil), child); err != nil {
			return err
		}
	}
	return nil
}

// steps compiles a list of steps into a body running them in order.
func (c *compiler) steps(steps []stepFile, wrapErr func(int, stepFile, error) error) (func(*chainrun.Cy), error) {
	chains := make([]func(*chainrun.Cy), 0, len(steps))
	for i, step := range steps {
		fn, err := c.chain(step)
		if err != nil {
			return nil, wrapErr(i, step, err)
		}
		chains = append(chains, fn)
	}
	return func(cy *chainrun.Cy) {
		for _, fn := range chains {
			fn(cy)
		}
	}, nil
}

// chain compiles one step.
func (c *compiler) chain(step stepFile) (func(*chainrun.Cy), error) {
	ops := make([]op, 0, len(step.Commands))
	for i, cmd := range step.Commands {
		o, err := c.command(cmd, i == 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Name, err)
		}
		ops = append(ops, o)
	}
	return func(cy *chainrun.Cy) {
		ch := ops[0].root(cy)
		for _, o := range ops[1:] {
			ch = o.chain(ch)
		}
	}, nil
}

func (c *compiler) command(cmd commandFile, first bool) (op, error) {
	if cmd.Name == "within" {
		if first {
			return op{}, errors.New("within needs a subject")
		}
		body, err := c.steps(cmd.Within, func(i int, step stepFile, err error) error {
			return fmt.Errorf("within step %d (line %d): %w", i+1, step.Line, err)
		})
		if err != nil {
			return op{}, err
		}
		return op{chain: func(ch chainrun.Chain) chainrun.Chain { return ch.Within(body) }}, nil
	}
	e, ok := commands[cmd.Name]
	if !ok {
		return op{}, ErrUnknownCommand
	}
	a := newArgs(cmd)
	if err := a.count(e.min, e.max); err != nil {
		return op{}, err
	}
	o, err := e.build(a)
	if err != nil {
		return op{}, err
	}
	if err := a.unused(); err != nil {
		return op{}, err
	}
	switch {
	case first && o.root == nil:
		return op{}, errors.New("cannot start a chain")
	case !first && o.chain == nil:
		return op{}, errors.New("must start a chain")
	}
	return o, nil
}

func knownChainer(name string) bool {
	_, found := slices.BinarySearch(chainrun.Chainers(), strings.TrimPrefix(name, "not."))
	return found
}
