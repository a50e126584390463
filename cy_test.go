package chainrun_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/static"
)

// testTimeout keeps failing commands short.
const testTimeout = 300 * time.Millisecond

func testConfig() chainrun.Config {
	return chainrun.Config{
		Timeout:        chainrun.NewNullDuration(testTimeout, true),
		PollInterval:   chainrun.NewNullDuration(10*time.Millisecond, true),
		KeystrokeDelay: chainrun.NewNullDuration(time.Millisecond, true),
	}
}

// visit serves html at "/" from a static browser, visits it and returns the
// entry point.
func visit(t *testing.T, html string, script func(d *static.Document)) (*chainrun.Cy, *static.Browser) {
	t.Helper()
	b := static.New(static.WithPage("/", static.Page{HTML: html, Script: script}))
	t.Cleanup(b.Close)
	cy := chainrun.NewCy(context.Background(), b,
		chainrun.WithCyConfig(testConfig()),
		chainrun.WithCyFs(afero.NewMemMapFs()),
	)
	cy.Visit("/")
	require.NoError(t, cy.Flush())
	return cy, b
}

const listPage = `<html><head><title>List</title></head><body>
<ul id="list"><li class="a">apples</li><li class="b">oranges</li><li class="c">bananas</li></ul>
<p id="other">other</p>
</body></html>`

func TestLazyQueryFlushedByNextRootCommand(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, listPage, nil)
	cy.Get("#missing")
	cy.Get("#other").Should("have.text", "other")

	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Err(), &re)
	assert.Equal(t, `get("#missing")`, re.Locator)
	assert.Equal(t, 0, re.Count)
	assert.ErrorIs(t, re, chainrun.ErrNoResults)
}

func TestFlushChecksUnconsumedChains(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, listPage, nil)
	cy.Get("#list").Find("li")
	require.NoError(t, cy.Flush())

	cy.Get("#list").Find(".missing")
	err := cy.Flush()
	var re *chainrun.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, `get("#list").find(".missing")`, re.Locator)
}

func TestFirstErrorSticks(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, listPage, nil)
	cy.Get("li").Should("have.length", 4)
	first := cy.Err()
	require.Error(t, first)

	start := time.Now()
	c := cy.Get("#missing").Should("exist").Click()
	assert.Less(t, time.Since(start), testTimeout, "commands after a failure do nothing")
	assert.Same(t, first, c.Err())
	assert.Same(t, first, cy.Flush())
	assert.Empty(t, c.Locator())
}

func TestChainsAreImmutable(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, listPage, nil)
	list := cy.Get("#list")
	list.Find(".a").Should("have.text", "apples")
	list.Find(".c").Should("have.text", "bananas")
	list.Children().Should("have.length", 3)
	assert.Equal(t, `get("#list")`, list.Locator())
	require.NoError(t, cy.Flush())
}

func TestResolvingTwiceYieldsSameNodes(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, listPage, nil)
	ctx := context.Background()
	for _, c := range []chainrun.Chain{
		cy.Get("#list").Children(),
		cy.Get("li").Filter(".a, .c"),
		cy.Contains("oranges").Closest("ul"),
	} {
		first, err := c.Resolve(ctx)
		require.NoError(t, err, c.Locator())
		require.NotEmpty(t, first.Nodes, c.Locator())
		second, err := c.Resolve(ctx)
		require.NoError(t, err, c.Locator())
		assert.Equal(t, first.Nodes, second.Nodes, c.Locator())
		c.Should("exist")
	}
	require.NoError(t, cy.Flush())
}

func TestChainRetriesFromTheRoot(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, listPage, func(d *static.Document) {
		d.After(50*time.Millisecond, func(d *static.Document) {
			d.Find("#list").SetHtml(`<li class="d">dates</li>`)
		})
	})
	cy.Get("#list").Find("li").Should("have.length", 1).Should("have.class", "d")
	require.NoError(t, cy.Flush())
}

func TestWrapAndResolve(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, listPage, nil)
	sub, err := cy.Wrap(map[string]interface{}{"a": 1}).Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, sub.IsValue)
	assert.Equal(t, map[string]interface{}{"a": 1}, sub.Value)

	sub, err = cy.Root().Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, sub.Nodes, 1)
	tag, err := cy.Provider().ReadProperty(context.Background(), sub.Nodes[0], chainrun.PropTagName)
	require.NoError(t, err)
	assert.Equal(t, "HTML", tag)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	b := static.New(static.WithPage("/", static.Page{HTML: listPage}))
	t.Cleanup(b.Close)
	ctx, cancel := context.WithCancel(context.Background())
	cy := chainrun.NewCy(ctx, b, chainrun.WithCyConfig(testConfig()))
	cy.Visit("/")
	require.NoError(t, cy.Flush())

	cancel()
	cy.Get("#list").Should("exist")
	assert.True(t, errors.Is(cy.Err(), context.Canceled), "got %v", cy.Err())
}
