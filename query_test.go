package chainrun_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun"
)

const queryPage = `<html><head><title>Querying</title></head><body>
<div id="outer">
  <ul class="list"><li class="a">apples</li><li class="b">oranges <span>fresh</span></li><li class="c">bananas</li></ul>
  <form class="query-form">
    <label for="email">Email</label><input id="email" placeholder="Email">
    <button type="submit"><span>Submit</span></button>
  </form>
  <div class="nested"><p>deep text <b>bold needle</b></p></div>
</div>
<div class="other"><span class="x">outside</span></div>
</body></html>`

func TestGetPositional(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	cy.Get("li").Should("have.length", 3)
	cy.Get("li:first").Should("have.class", "a")
	cy.Get("li:last").Should("have.class", "c")
	cy.Get("li:eq(1)").Should("have.class", "b")
	cy.Get("li:eq(-1)").Should("have.class", "c")
	cy.Get("li:eq(5)").Should("not.exist")
	require.NoError(t, cy.Flush())
}

func TestGetWithTimeout(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	start := time.Now()
	cy.GetWith("#missing", chainrun.QueryOptions{Timeout: 40 * time.Millisecond})
	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Flush(), &re)
	assert.Less(t, time.Since(start), testTimeout)
}

func TestInvalidSelectorFailsFast(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	cy.Get("li[").Should("exist")

	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Err(), &re)
	assert.ErrorIs(t, re, chainrun.ErrInvalidSelector)
	assert.Less(t, re.Elapsed, testTimeout)
}

func TestWithin(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	form := cy.Get(".query-form").Within(func(cy *chainrun.Cy) {
		cy.Get("input").Should("have.attr", "placeholder", "Email")
		cy.Get(".x").Should("not.exist")
		cy.Root().Should("have.class", "query-form")
	})
	form.Should("match", "form")
	cy.Get(".x").Should("have.length", 1)
	require.NoError(t, cy.Flush())
}

func TestWithinRestoresScopeOnFailure(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	cy.Get(".query-form").Within(func(cy *chainrun.Cy) {
		cy.Get(".x")
	})

	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Err(), &re)
	assert.Equal(t, `get(".query-form") > get(".x")`, re.Locator)
}

func TestWithinNeedsOneElement(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	ran := false
	cy.Get("li").Within(func(*chainrun.Cy) {
		ran = true
	})

	assert.False(t, ran)
	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Err(), &re)
	assert.Equal(t, "exactly one element", re.Want)
	assert.Equal(t, 3, re.Count)
	assert.ErrorIs(t, re, chainrun.ErrTooManyResults)
}

func TestTraversal(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	cy.Get(".list").Children().Should("have.length", 3)
	cy.Get(".list").Find(".b span").Should("have.text", "fresh")
	cy.Get("li.a").Next().Should("have.class", "b")
	cy.Get("li.a").Next(".c").Should("not.exist")
	cy.Get("li.a").NextAll().Should("have.length", 2)
	cy.Get("li.a").NextUntil(".c").Should("have.length", 1)
	cy.Get("li.c").Prev().Should("have.class", "b")
	cy.Get("li.c").PrevAll(".a").Should("have.length", 1)
	cy.Get("li.c").PrevUntil(".a").Should("have.class", "b")
	cy.Get("li.b").Siblings().Should("have.length", 2)
	cy.Get("span.x").Parent().Should("have.class", "other")
	cy.Get("b").Parents("div").Should("have.length", 2)
	cy.Get("b").ParentsUntil("#outer").Should("have.length", 2)
	cy.Get("b").Closest("div").Should("have.class", "nested")
	cy.Get("li").Filter(".b").Should("have.length", 1)
	cy.Get("li").Not(".b").Should("have.length", 2)
	cy.Get("li").First().Should("have.class", "a")
	cy.Get("li").Last().Should("have.class", "c")
	cy.Get("li").Eq(1).Should("have.class", "b")
	require.NoError(t, cy.Flush())
}

func TestTraversalOnValue(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	cy.Wrap("text").Find("li").Should("exist")

	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.ErrorIs(t, ce, chainrun.ErrInvalidSubject)
}

func TestContains(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	cy.Contains("needle").Should("match", "b")
	cy.Contains(regexp.MustCompile(`(?i)^ORANGES`)).Should("have.class", "b")
	cy.ContainsIn("ul", "oranges").Should("have.class", "list")
	cy.Get("#outer").Contains("bananas").Should("have.class", "c")
	cy.Get("#outer").ContainsIn("p", "needle").Should("contain", "deep text")
	cy.Contains("nowhere").Should("not.exist")
	cy.Contains("Querying").Should("not.exist")
	cy.ContainsIn("title", "Querying").Should("have.text", "Querying")
	require.NoError(t, cy.Flush())
}

func TestContainsPromotesToPriorityElements(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, queryPage, nil)
	cy.Contains("Submit").Should("match", "button")
	cy.Contains("Email").Should("match", "label")
	cy.ContainsIn("span", "Submit").Should("match", "span")
	require.NoError(t, cy.Flush())
}
