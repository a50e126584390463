package chainrun_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/static"
)

const assertPage = `<html><head><title>Assertions</title></head><body>
<p id="count">24</p>
<a id="link" href="/next" class="nav active">Next</a>
<div id="hidden" style="display: none">hidden</div>
<div id="empty"></div>
<input id="name" value="Jane">
<button id="off" disabled>Off</button>
</body></html>`

func TestShouldRetriesUntilPass(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, func(d *static.Document) {
		d.After(100*time.Millisecond, func(d *static.Document) {
			d.Find("#count").SetText("25")
		})
	})
	cy.Get("#count").Should("have.text", "25")
	require.NoError(t, cy.Flush())
}

func TestAssertionTimeout(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, nil)
	cy.Get("#count").Should("have.text", "25")

	var at *chainrun.AssertionTimeout
	require.ErrorAs(t, cy.Err(), &at)
	assert.Equal(t, "have.text", at.Chainer)
	assert.False(t, at.Negated)
	assert.Equal(t, "25", at.Expected)
	assert.Equal(t, "24", at.Actual)
	assert.Equal(t, `get("#count")`, at.Locator)
	assert.GreaterOrEqual(t, at.Elapsed, testTimeout)
	assert.ErrorIs(t, at, chainrun.ErrPollingTimeout)
	assert.Contains(t, at.Error(), `retrying: expected get("#count") to have.text "25", got "24"`)
	assert.Equal(t, "AssertionTimeout", chainrun.ErrorKind(at))
}

func TestNegatedAssertion(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, nil)
	cy.Get("#count").Should("not.have.text", "25")
	cy.Get("#missing").Should("not.exist")
	cy.Get("#link").Should("not.have.class", "disabled")
	require.NoError(t, cy.Flush())

	cy.Get("#count").Should("not.have.text", "24")
	var at *chainrun.AssertionTimeout
	require.ErrorAs(t, cy.Err(), &at)
	assert.True(t, at.Negated)
	assert.Contains(t, at.Error(), "to not.have.text")
}

func TestShouldOnMissingElement(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, nil)
	cy.Get("#missing").Should("have.text", "x")

	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Err(), &re)
	assert.Equal(t, "ResolutionError", chainrun.ErrorKind(cy.Err()))
}

func TestUnknownChainer(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, nil)
	start := time.Now()
	cy.Get("#count").Should("be.purple")
	assert.Less(t, time.Since(start), testTimeout)
	assert.ErrorIs(t, cy.Err(), chainrun.ErrUnknownChainer)

	cy, _ = visit(t, assertPage, nil)
	cy.Get("#count").Should("have.text")
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.Contains(t, ce.Error(), "have.text takes 1 to 1 arguments, got 0")
}

func TestChainers(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, nil)
	cy.Title().Should("eq", "Assertions")
	cy.Get("#count").Should("exist").And("be.visible").And("contain", "2")
	cy.Get("#count").Should("contain", regexp.MustCompile(`^2\d$`))
	cy.Get("#count").Should("match", regexp.MustCompile(`4$`))
	cy.Get("#count").Should("match", "p#count")
	cy.Get("#hidden").Should("be.hidden").And("not.be.visible")
	cy.Get("#empty").Should("be.empty")
	cy.Get("#count").Should("not.be.empty")
	cy.Get("#link").Should("have.class", "active").And("have.attr", "href", "/next")
	cy.Get("#name").Should("have.value", "Jane").And("be.enabled")
	cy.Get("#off").Should("be.disabled")
	cy.Get("p, a").Should("have.length", 2)
	cy.Wrap([]interface{}{1, 2, 3}).Should("have.length", 3).And("include", 2).And("deep.equal", []int{1, 2, 3})
	cy.Wrap(map[string]interface{}{"name": "Jane"}).Should("have.property", "name", "Jane")
	cy.Wrap("hello world").Should("contain", "world").And("have.length", 11)
	require.NoError(t, cy.Flush())
}

func TestAttrAndPropertyYieldValue(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, nil)
	cy.Get("#link").Should("have.attr", "href").Should("eq", "/next")
	cy.Get("#count").Should("have.property", "id").And("eq", "count")
	cy.Wrap(map[string]interface{}{"size": 3}).Should("have.property", "size").Should("eq", 3)
	require.NoError(t, cy.Flush())

	c := cy.Get("#link").Should("have.attr", "href", "/next")
	assert.Equal(t, `get("#link")`, c.Locator())
	c = cy.Get("#link").Should("have.attr", "href")
	assert.Equal(t, `get("#link").its("href")`, c.Locator())
	require.NoError(t, cy.Flush())

	cy.Get("#link").Should("not.have.attr", "title").And("eq", "Next")
	var at *chainrun.AssertionTimeout
	require.ErrorAs(t, cy.Err(), &at)
	assert.Equal(t, "eq", at.Chainer)
	assert.Equal(t, `get("#link").its("title")`, at.Locator)
}

func TestMultilineDiff(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, assertPage, nil)
	cy.Wrap("first\nsecond\n").Should("eq", "first\nthird\n")

	var at *chainrun.AssertionTimeout
	require.ErrorAs(t, cy.Err(), &at)
	assert.Contains(t, at.Diff, "-third")
	assert.Contains(t, at.Diff, "+second")
}
