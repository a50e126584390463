package loader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/chromedp/chainrun"
)

// args gives typed access to a command's arguments and options. Options
// that are never read are reported by unused.
type args struct {
	vals []interface{}
	opts map[string]interface{}
	used map[string]bool
}

func newArgs(c commandFile) *args {
	return &args{vals: c.Args, opts: c.Opts, used: map[string]bool{}}
}

func (a *args) count(lo, hi int) error {
	n := len(a.vals)
	switch {
	case n < lo && lo == hi:
		return fmt.Errorf("takes %d arguments, got %d", lo, n)
	case n < lo:
		return fmt.Errorf("takes at least %d arguments, got %d", lo, n)
	case hi >= 0 && n > hi:
		return fmt.Errorf("takes at most %d arguments, got %d", hi, n)
	}
	return nil
}

func (a *args) str(i int) (string, error) {
	switch v := a.vals[i].(type) {
	case string:
		return v, nil
	case int, float64, bool:
		return fmt.Sprint(v), nil
	}
	return "", fmt.Errorf("argument %d: expected a string, got %T", i+1, a.vals[i])
}

func (a *args) strs(from int) ([]string, error) {
	var out []string
	for i := from; i < len(a.vals); i++ {
		// A list argument is flattened: check: [[a, b]] checks a and b.
		if l, ok := a.vals[i].([]interface{}); ok {
			for _, v := range l {
				out = append(out, fmt.Sprint(v))
			}
			continue
		}
		s, err := a.str(i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (a *args) int(i int) (int, error) {
	switch v := a.vals[i].(type) {
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w", i+1, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("argument %d: expected an integer, got %T", i+1, a.vals[i])
}

func (a *args) float(i int) (float64, error) {
	return toFloat(fmt.Sprintf("argument %d", i+1), a.vals[i])
}

// text returns a string argument, compiling /pattern/flags literals.
func (a *args) text(i int) (interface{}, error) {
	s, err := a.str(i)
	if err != nil {
		return nil, err
	}
	return literal(s)
}

// values returns every argument from i on. With patterns set, regexp
// literals are compiled; otherwise "/.../" stays a plain string.
func (a *args) values(from int, patterns bool) ([]interface{}, error) {
	var out []interface{}
	for _, v := range a.vals[from:] {
		if s, ok := v.(string); ok && patterns {
			re, err := literal(s)
			if err != nil {
				return nil, err
			}
			out = append(out, re)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

var reLiteral = regexp.MustCompile(`^/(.+)/([imsU]*)$`)

// literal returns s compiled when it is written /pattern/flags, otherwise
// s unchanged.
func literal(s string) (interface{}, error) {
	m := reLiteral.FindStringSubmatch(s)
	if m == nil {
		return s, nil
	}
	pat := m[1]
	if m[2] != "" {
		pat = "(?" + m[2] + ")" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("invalid regexp %s: %w", s, err)
	}
	return re, nil
}

func (a *args) opt(key string) (interface{}, bool) {
	v, ok := a.opts[key]
	if ok {
		a.used[key] = true
	}
	return v, ok
}

func (a *args) bool(key string) (bool, error) {
	v, ok := a.opt(key)
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %s: expected a boolean, got %T", key, v)
	}
	return b, nil
}

func (a *args) duration(key string) (time.Duration, error) {
	v, ok := a.opt(key)
	if !ok {
		return 0, nil
	}
	switch d := v.(type) {
	case int:
		return time.Duration(d) * time.Millisecond, nil
	case float64:
		return time.Duration(d * float64(time.Millisecond)), nil
	case string:
		dur, err := chainrun.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return dur, nil
	}
	return 0, fmt.Errorf("option %s: expected a duration, got %T", key, v)
}

func (a *args) string(key string) (string, error) {
	v, ok := a.opt(key)
	if !ok {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case int, float64:
		return fmt.Sprint(s), nil
	}
	return "", fmt.Errorf("option %s: expected a string, got %T", key, v)
}

func (a *args) position(key string) (chainrun.Position, error) {
	s, err := a.string(key)
	if err != nil || s == "" {
		return "", err
	}
	p := chainrun.Position(s)
	if !p.Valid() {
		return "", fmt.Errorf("option %s: invalid position %q", key, s)
	}
	return p, nil
}

// unused returns an error naming the options no builder read.
func (a *args) unused() error {
	var extra []string
	for k := range a.opts {
		if !a.used[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	slices.Sort(extra)
	return fmt.Errorf("unknown options: %s", strings.Join(extra, ", "))
}

func toFloat(what string, v interface{}) (float64, error) {
	switch f := v.(type) {
	case int:
		return float64(f), nil
	case float64:
		return f, nil
	case string:
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", what, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%s: expected a number, got %T", what, v)
}
