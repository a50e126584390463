package main

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/mailru/easyjson/jlexer"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun/internal/errext/exitcodes"
)

const sitePage = `<!doctype html>
<html>
<head><title>Home</title></head>
<body>
  <h1 id="title" data-box="0 0 400 40">Welcome</h1>
  <button id="go" data-box="0 50 100 30">Go</button>
</body>
</html>`

const passingSuite = `
describe: Home
beforeEach:
  - visit: /index.html
it:
  - name: shows the title
    steps:
      - [title, {should: [eq, Home]}]
  - name: finds the button
    steps:
      - [{get: "#go"}, {should: [contain, Go]}, click]
`

const failingSuite = `
describe: Broken
it:
  - name: expects another heading
    steps:
      - visit: /index.html
      - [{get: ["#title", {timeout: 50}]}, {should: [have.text, Goodbye]}]
`

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(data), 0o644))
	}
}

func TestRunStatic(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	writeFiles(t, ts.fs, map[string]string{
		"site/index.html":  sitePage,
		"suites/home.yaml": passingSuite,
	})
	ts.run("run", "--static", "site", "--no-color", "suites")

	assert.Equal(t, -1, ts.exitCode, ts.stdErr.String())
	out := ts.stdOut.String()
	assert.Contains(t, out, "Home")
	assert.Contains(t, out, "✓ shows the title")
	assert.Contains(t, out, "✓ finds the button")
	assert.Contains(t, out, "2 passing")
	assert.NotContains(t, out, "\x1b[", "colors are disabled")
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	writeFiles(t, ts.fs, map[string]string{
		"site/index.html":    sitePage,
		"suites/broken.yaml": failingSuite,
	})
	ts.run("run", "--static", "site", "--reporter", "json", "suites/broken.yaml")

	assert.Equal(t, int(exitcodes.CasesFailed), ts.exitCode)
	assert.Contains(t, ts.stdErr.String(), "1 failed and 0 errored of 1 cases")

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(ts.stdOut.String()))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2, "a line per case and one for the run")

	var state, kind string
	in := jlexer.Lexer{Data: []byte(lines[0])}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		switch key {
		case "state":
			state = in.String()
		case "errorKind":
			kind = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	require.NoError(t, in.Error())
	assert.Equal(t, "failed", state)
	assert.Equal(t, "AssertionTimeout", kind)
}

func TestRunConfigLayers(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	writeFiles(t, ts.fs, map[string]string{
		"chainrun.yaml": "timeout: 2s\nbaseURL: http://file.test\nparallel: 3\n",
	})
	ts.env["CHAINRUN_TIMEOUT"] = "3000"
	ts.env["CHAINRUN_REPORTER"] = "json"

	c := &cmdRun{gs: ts.globalState, configPath: "chainrun.yaml"}
	flags := c.flagSet()
	require.NoError(t, flags.Parse([]string{"--parallel", "2"}))

	conf, err := c.consolidateConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, conf.Timeout.Duration, "env overrides the file")
	assert.Equal(t, "http://file.test", conf.BaseURL.String)
	assert.Equal(t, int64(2), conf.Parallel.Int64, "flags override the file")
	assert.Equal(t, "json", conf.Reporter.String)
	assert.Equal(t, 50*time.Millisecond, conf.PollInterval.Duration, "defaults stay")
	assert.True(t, conf.Headless.Bool)
}

func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	writeFiles(t, ts.fs, map[string]string{"suites/home.yaml": passingSuite})
	ts.run("run", "--static", "site", "--reporter", "tap", "suites")
	assert.Equal(t, int(exitcodes.InvalidConfig), ts.exitCode)
	assert.Contains(t, ts.stdErr.String(), `unknown reporter \"tap\"`)
}

func TestRunLoadError(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	writeFiles(t, ts.fs, map[string]string{
		"site/index.html": sitePage,
		"bad.yaml":        "describe: Bad\nit:\n  - name: x\n    steps:\n      - {teleport: home}\n",
	})
	ts.run("run", "--static", "site", "bad.yaml")
	assert.Equal(t, int(exitcodes.LoadError), ts.exitCode)
	assert.Contains(t, ts.stdErr.String(), "teleport: unknown command")
}

func TestGetConfigOnlyChangedFlags(t *testing.T) {
	t.Parallel()

	c := &cmdRun{}
	flags := c.flagSet()
	require.NoError(t, flags.Parse([]string{"--timeout", "1s", "--headless=false"}))
	conf := getConfig(flags)
	assert.True(t, conf.Timeout.Valid)
	assert.True(t, conf.Headless.Valid)
	assert.False(t, conf.Headless.Bool)
	assert.False(t, conf.Reporter.Valid)
	assert.False(t, conf.Parallel.Valid)

	unknown := pflag.NewFlagSet("", pflag.ContinueOnError)
	assert.Panics(t, func() { getNullBool(unknown, "headless") })
}
