package loader

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/static"
)

func TestKitchenSink(t *testing.T) {
	t.Parallel()

	fs := afero.NewOsFs()
	suites, err := Load(fs, "testdata/kitchen_sink.yaml")
	require.NoError(t, err)
	require.Len(t, suites, 1)

	pages, err := static.LoadDir(fs, "testdata/site")
	require.NoError(t, err)

	r := chainrun.NewRunner(
		chainrun.WithProviderFactory(static.Factory(static.WithPages(pages))),
		chainrun.WithConfig(chainrun.Config{Timeout: chainrun.NewNullDuration(time.Second, true)}),
		chainrun.WithFs(afero.NewMemMapFs()),
	)
	rep, err := r.Run(context.Background(), suites...)
	require.NoError(t, err)

	var names []string
	for _, c := range rep.Cases {
		assert.NotEqual(t, chainrun.StateFailed, c.State, "%s: %s", c.Name, c.Message)
		assert.NotEqual(t, chainrun.StateErrored, c.State, "%s: %s", c.Name, c.Message)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"cy.get() - query DOM elements",
		"cy.contains() - query DOM elements with matching content",
		".within() - query DOM elements within a specific element",
		"pending traversal",
		".type() - type into a DOM element",
		".check() - check a checkbox",
		".select() - select an option",
		".scrollIntoView() - scroll an element into view",
	}, names)
	assert.Equal(t, chainrun.Summary{Passed: 7, Skipped: 1}, rep.Summary())
	assert.Equal(t, []string{"Kitchen Sink", "Querying"}, rep.Cases[0].Path)
}

func TestLoadDirectory(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "suites/b.yml", []byte("describe: B\nit:\n  - name: x\n    steps: [{wrap: 1}]\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "suites/a.yaml", []byte("describe: A\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "suites/notes.txt", []byte("ignored"), 0o644))

	suites, err := Load(fs, "suites")
	require.NoError(t, err)
	require.Len(t, suites, 2)
	assert.Equal(t, "A", suites[0].Name)
	assert.Equal(t, "B", suites[1].Name)

	_, err = Load(fs, "missing.yaml")
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		step int
		line int
		msg  string
	}{
		{
			name: "unknown command",
			doc:  "describe: S\nit:\n  - name: c\n    steps:\n      - [{get: a}, {frobnicate: 1}]\n",
			step: 1, line: 5,
			msg: "frobnicate: unknown command",
		},
		{
			name: "chain command first",
			doc:  "describe: S\nit:\n  - name: c\n    steps:\n      - {get: a}\n      - {click: center}\n",
			step: 2, line: 6,
			msg: "click: cannot start a chain",
		},
		{
			name: "root command later",
			doc:  "describe: S\nit:\n  - name: c\n    steps:\n      - [{get: a}, {visit: /x}]\n",
			step: 1, line: 5,
			msg: "visit: must start a chain",
		},
		{
			name: "argument count",
			doc:  "describe: S\nit:\n  - name: c\n    steps:\n      - [{get: a}, {eq: [1, 2]}]\n",
			step: 1, line: 5,
			msg: "eq: takes 1 arguments, got 2",
		},
		{
			name: "unknown option",
			doc:  "describe: S\nit:\n  - name: c\n    steps:\n      - [{get: a}, {click: {forse: true}}]\n",
			step: 1, line: 5,
			msg: "click: unknown options: forse",
		},
		{
			name: "unknown chainer",
			doc:  "describe: S\nit:\n  - name: c\n    steps:\n      - [{get: a}, {should: [be.purple]}]\n",
			step: 1, line: 5,
			msg: `should: unknown chainer "be.purple"`,
		},
		{
			name: "bad duration",
			doc:  "describe: S\nit:\n  - name: c\n    steps:\n      - [{get: a}, {type: [x, {delay: soon}]}]\n",
			step: 1, line: 5,
			msg: "type: option delay",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadBytes("x.yaml", []byte(tt.doc))
			require.Error(t, err)
			var lerr *Error
			require.True(t, errors.As(err, &lerr), "%T", err)
			assert.Equal(t, "x.yaml", lerr.File)
			assert.Equal(t, []string{"S"}, lerr.Suite)
			assert.Equal(t, "c", lerr.Case)
			assert.Equal(t, tt.step, lerr.Step)
			assert.Equal(t, tt.line, lerr.Line)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := LoadBytes("x.yaml", []byte("describe: S\nit:\n  - name: c\n    steps:\n      - [{get: a}, {nope: 1}]\n"))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = LoadBytes("x.yaml", []byte("describe: S\nextra: 1\n"))
	assert.Error(t, err)

	_, err = LoadBytes("x.yaml", []byte("it: []\n"))
	assert.ErrorContains(t, err, "suite without describe")
}

func TestCommandArguments(t *testing.T) {
	t.Parallel()

	var c commandFile
	require.NoError(t, decode("{click: [10, 20, {force: true}]}", &c))
	assert.Equal(t, "click", c.Name)
	assert.Equal(t, []interface{}{10, 20}, c.Args)
	assert.Equal(t, map[string]interface{}{"force": true}, c.Opts)

	c = commandFile{}
	require.NoError(t, decode("{scrollIntoView: {duration: 100}}", &c))
	assert.Empty(t, c.Args)
	assert.Equal(t, map[string]interface{}{"duration": 100}, c.Opts)

	c = commandFile{}
	require.NoError(t, decode("{find: li}", &c))
	assert.Equal(t, []interface{}{"li"}, c.Args)

	c = commandFile{}
	require.NoError(t, decode("first", &c))
	assert.Equal(t, "first", c.Name)

	a := newArgs(commandFile{Opts: map[string]interface{}{"timeout": "2s", "delay": 15, "duration": 1.5}})
	d, err := a.duration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
	d, err = a.duration("delay")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Millisecond, d)
	d, err = a.duration("duration")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Microsecond, d)
	assert.NoError(t, a.unused())
}

func TestLiteral(t *testing.T) {
	t.Parallel()

	v, err := literal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	v, err = literal("/^ora/i")
	require.NoError(t, err)
	re, ok := v.(*regexp.Regexp)
	require.True(t, ok)
	assert.True(t, re.MatchString("Oranges"))

	v, err = literal("/")
	require.NoError(t, err)
	assert.Equal(t, "/", v)

	_, err = literal("/(/")
	assert.Error(t, err)
}

func TestHooksRunBeforeSteps(t *testing.T) {
	t.Parallel()

	s, err := LoadBytes("hooks.yaml", []byte(`
describe: Hooks
beforeEach:
  - visit: /page
it:
  - name: reads the title
    steps:
      - [title, {should: [eq, Page]}]
  - name: fails on missing element
    steps:
      - [{get: {timeout: 50}}]
`))
	require.Error(t, err, "get needs a selector")
	assert.Nil(t, s)

	s, err = LoadBytes("hooks.yaml", []byte(`
describe: Hooks
beforeEach:
  - visit: /page
it:
  - name: reads the title
    steps:
      - [title, {should: [eq, Page]}]
  - name: fails on missing element
    steps:
      - [{get: [.missing, {timeout: 50}]}, {should: [exist]}]
`))
	require.NoError(t, err)

	page := static.Page{HTML: "<html><head><title>Page</title></head><body></body></html>"}
	r := chainrun.NewRunner(chainrun.WithProviderFactory(static.Factory(static.WithPage("/page", page))))
	rep, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, rep.Cases, 2)
	assert.Equal(t, chainrun.StatePassed, rep.Cases[0].State, rep.Cases[0].Message)
	assert.Equal(t, chainrun.StateFailed, rep.Cases[1].State)
	assert.Equal(t, "AssertionTimeout", rep.Cases[1].ErrorKind)
}

func TestSlashStringsAreLiteralOutsidePatterns(t *testing.T) {
	t.Parallel()

	s, err := LoadBytes("paths.yaml", []byte(`
describe: Paths
beforeEach:
  - visit: /page
it:
  - name: compares a path
    steps:
      - [{get: a}, {should: [have.attr, href, /path/]}]
      - [{get: a}, {should: [have.text, /docs/]}]
  - name: matches a pattern
    steps:
      - [{get: a}, {should: [match, /^\/do/]}]
      - [{get: a}, {should: [contain, /CS/i]}]
`))
	require.NoError(t, err)

	page := static.Page{HTML: `<html><body><a href="/path/">/docs/</a></body></html>`}
	r := chainrun.NewRunner(chainrun.WithProviderFactory(static.Factory(static.WithPage("/page", page))))
	rep, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, rep.Cases, 2)
	for _, c := range rep.Cases {
		assert.Equal(t, chainrun.StatePassed, c.State, "%s: %s", c.Name, c.Message)
	}
}

func decode(doc string, v interface{}) error {
	return yaml.Unmarshal([]byte(doc), v)
}
