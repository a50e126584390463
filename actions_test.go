package chainrun_test

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/static"
)

const actionsPage = `<html><head><title>Actions</title></head><body>
<form id="f">
  <input id="email" type="email" data-box="10 10 200 20">
  <input id="disabled" type="text" disabled data-box="10 40 200 20">
  <input class="cb" type="checkbox" value="one" data-box="10 70 10 10">
  <input class="cb" type="checkbox" value="two" data-box="30 70 10 10">
  <input class="cb" type="checkbox" value="three" data-box="50 70 10 10">
  <input class="radio" type="radio" name="r" value="a" data-box="70 70 10 10">
  <input class="radio" type="radio" name="r" value="b" data-box="90 70 10 10">
  <select id="fruit" data-box="10 100 100 20">
    <option value="ap">apples</option><option value="or">oranges</option><option value="ba">bananas</option>
  </select>
  <select id="multi" multiple data-box="120 100 100 60">
    <option value="ap">apples</option><option value="or">oranges</option><option value="ba">bananas</option>
  </select>
</form>
<button id="covered" type="button" data-box="10 200 50 20">Covered</button>
<div id="overlay" data-box="0 190 100 50"></div>
<button id="go" type="button" data-box="10 300 50 20"><span data-box="12 302 40 16">Go</span></button>
<button class="many" type="button" data-box="100 300 50 20">A</button>
<button class="many" type="button" data-box="200 300 50 20">B</button>
<p id="log" data-box="10 400 300 20"></p>
<button id="far" type="button" data-box="10 1500 50 20">Far</button>
</body></html>`

// record appends the ids of elements receiving event to the log element.
func record(sel, event string) func(d *static.Document) {
	return func(d *static.Document) {
		d.On(sel, event, func(d *static.Document, target *goquery.Selection, _ chainrun.Event) {
			log := d.Find("#log")
			log.SetText(strings.TrimSpace(log.Text() + " " + event + ":" + target.AttrOr("id", target.Text())))
		})
	}
}

func scripts(fns ...func(d *static.Document)) func(d *static.Document) {
	return func(d *static.Document) {
		for _, fn := range fns {
			fn(d)
		}
	}
}

func TestTypeAndClear(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#email").Type("fake@email.com").Should("have.value", "fake@email.com")
	cy.Get("#email").Should("have.focus")
	cy.Get("#email").Type("{selectall}{backspace}new").Should("have.value", "new")
	cy.Get("#email").Clear().Should("have.value", "")
	require.NoError(t, cy.Flush())
}

func TestTypeRejectsBadInput(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#email").Type("")
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.Equal(t, "type", ce.Command)

	cy, _ = visit(t, actionsPage, nil)
	cy.Get("#fruit").Clear()
	assert.ErrorIs(t, cy.Err(), chainrun.ErrInvalidSubject)
}

func TestDisabledPrecondition(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#disabled").Type("x")

	var pe *chainrun.ActionPreconditionError
	require.ErrorAs(t, cy.Err(), &pe)
	assert.Equal(t, chainrun.PreconditionDisabled, pe.Precondition)
	assert.Equal(t, "type", pe.Command)
	assert.Equal(t, `get("#disabled")`, pe.Locator)
	assert.ErrorIs(t, pe, chainrun.ErrDisabled)
	assert.Equal(t, "ActionPreconditionError", chainrun.ErrorKind(pe))
}

func TestOccludedPrecondition(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, record("#covered", "click"))
	cy.Get("#covered").Click()

	var pe *chainrun.ActionPreconditionError
	require.ErrorAs(t, cy.Err(), &pe)
	assert.Equal(t, chainrun.PreconditionOccluded, pe.Precondition)
	assert.ErrorIs(t, pe, chainrun.ErrOccluded)

	cy, _ = visit(t, actionsPage, record("#covered", "click"))
	cy.Get("#covered").ClickWith(chainrun.ClickOptions{Force: true})
	cy.Get("#log").Should("have.text", "click:covered")
	require.NoError(t, cy.Flush())
}

func TestClickOnDescendantIsNotOccluded(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, record("#go", "click"))
	cy.Get("#go").ClickAt(chainrun.TopLeft)
	cy.Get("#go").Dblclick()
	cy.Get("#log").Should("have.text", "click:go click:go click:go")
	require.NoError(t, cy.Flush())
}

func TestClickScrollsIntoView(t *testing.T) {
	t.Parallel()

	cy, b := visit(t, actionsPage, record("#far", "click"))
	cy.Get("#far").Click()
	cy.Get("#log").Should("contain", "click:far")
	require.NoError(t, cy.Flush())

	b.Do(func(d *static.Document) {
		_, y := d.ScrollPosition()
		assert.Greater(t, y, 0.0)
	})
}

func TestClickMultiple(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, record(".many", "click"))
	cy.Get(".many").ClickWith(chainrun.ClickOptions{Multiple: true})
	cy.Get("#log").Should("have.text", "click:A click:B")
	require.NoError(t, cy.Flush())

	cy.Get(".many").Click()
	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Err(), &re)
	assert.Equal(t, "a single element", re.Want)
	assert.Equal(t, 2, re.Count)
}

func TestClickInvalidPosition(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#go").ClickAt("middle")
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.Contains(t, ce.Error(), `invalid position "middle"`)
}

func TestCheckAndUncheck(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get(".cb").Check("one", "three")
	cy.Get(".cb:eq(0)").Should("be.checked")
	cy.Get(".cb:eq(1)").Should("not.be.checked")
	cy.Get(".cb:eq(2)").Should("be.checked")

	cy.Get(".cb").Uncheck("three")
	cy.Get(".cb:eq(0)").Should("be.checked")
	cy.Get(".cb:eq(2)").Should("not.be.checked")

	cy.Get(".cb").Check()
	cy.Get(".cb").Should("be.checked")
	cy.Get(".cb").Uncheck()
	cy.Get(".cb").Should("not.be.checked")

	cy.Get(".radio").Check("b")
	cy.Get(".radio:last").Should("be.checked")
	cy.Get(".radio:first").Should("not.be.checked")
	require.NoError(t, cy.Flush())
}

func TestCheckInvalidTargets(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#email").Check()
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.ErrorIs(t, ce, chainrun.ErrInvalidSubject)

	cy, _ = visit(t, actionsPage, nil)
	cy.Get(".radio").Uncheck()
	require.ErrorAs(t, cy.Err(), &ce)
	assert.Contains(t, ce.Error(), "can only be called on checkboxes")

	cy, _ = visit(t, actionsPage, nil)
	cy.Get(".cb").Check("four")
	require.ErrorAs(t, cy.Err(), &ce)
	assert.ErrorIs(t, ce, chainrun.ErrNoResults)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, record("#fruit", "change"))
	cy.Get("#fruit").Select("oranges").Should("have.value", "or")
	cy.Get("#fruit").Select("ba").Should("have.value", "ba")
	cy.Get("#log").Should("have.text", "change:fruit change:fruit")

	cy.Get("#multi").Select("apples", "ba")
	cy.Get("#multi option:first").Should("be.selected")
	cy.Get("#multi option:eq(1)").Should("not.be.selected")
	cy.Get("#multi option:last").Should("be.selected")
	require.NoError(t, cy.Flush())
}

func TestSelectErrors(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#fruit").Select("ap", "or")
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.ErrorIs(t, ce, chainrun.ErrInvalidSubject)

	cy, _ = visit(t, actionsPage, nil)
	cy.Get("#fruit").Select("kiwi")
	require.ErrorAs(t, cy.Err(), &ce)
	assert.ErrorIs(t, ce, chainrun.ErrNoResults)

	cy, _ = visit(t, actionsPage, nil)
	cy.Get("#email").Select("x")
	require.ErrorAs(t, cy.Err(), &ce)
	assert.Contains(t, ce.Error(), "input is not a select")
}

func TestFocusAndBlur(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, scripts(record("#email", "focus"), record("#email", "blur")))
	cy.Get("#email").Focus().Should("have.focus")
	cy.Get("#email").Blur().Should("not.be.focused")
	cy.Get("#log").Should("have.text", "focus:email blur:email")
	require.NoError(t, cy.Flush())

	cy.Get("#email").Blur()
	var re *chainrun.ResolutionError
	require.ErrorAs(t, cy.Err(), &re)
	assert.Equal(t, "a single focused element", re.Want)
	assert.ErrorIs(t, re, chainrun.ErrNotFocused)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, record("#f", "submit"))
	cy.Get("#f").Submit()
	cy.Get("#log").Should("have.text", "submit:f")
	require.NoError(t, cy.Flush())

	cy.Get("#email").Submit()
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.ErrorIs(t, ce, chainrun.ErrInvalidSubject)
}

func TestTrigger(t *testing.T) {
	t.Parallel()

	var got chainrun.Event
	cy, _ := visit(t, actionsPage, func(d *static.Document) {
		d.On("#go", "highlight", func(_ *static.Document, _ *goquery.Selection, ev chainrun.Event) {
			got = ev
		})
	})
	cy.Get("#go").TriggerWith("highlight", chainrun.TriggerOptions{Position: chainrun.BottomRight})
	require.NoError(t, cy.Flush())

	assert.Equal(t, chainrun.CustomEvent, got.Type)
	assert.Equal(t, "highlight", got.Name)
	assert.Equal(t, 59.0, got.X)
	assert.Equal(t, 319.0, got.Y)
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#email").Invoke("val", "preset")
	cy.Get("#email").Invoke("val").Should("eq", "preset")
	cy.Get("#email").Invoke("attr", "type").Should("eq", "email")
	cy.Get(".many").Invoke("text").Should("eq", "AB")
	cy.Get("#go").Invoke("prop", "answer", 42)
	cy.Get("#go").Invoke("prop", "answer").Should("eq", 42)
	require.NoError(t, cy.Flush())

	cy.Get("#go").Invoke("hide")
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.Equal(t, "invoke", ce.Command)
}

func TestScrollIntoView(t *testing.T) {
	t.Parallel()

	cy, _ := visit(t, actionsPage, nil)
	cy.Get("#far").Should("not.be.visible")
	cy.Get("#far").ScrollIntoView().Should("be.visible")
	require.NoError(t, cy.Flush())

	cy, _ = visit(t, actionsPage, nil)
	start := time.Now()
	cy.Get("#far").ScrollIntoViewWith(chainrun.ScrollOptions{Easing: chainrun.Linear, Duration: 80 * time.Millisecond}).
		Should("be.visible")
	require.NoError(t, cy.Flush())
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	cy.Window().Should("have.property", chainrun.PropScrollTop).And("not.eq", 0)
	require.NoError(t, cy.Flush())

	cy.Get("#far").ScrollIntoViewWith(chainrun.ScrollOptions{Easing: "bounce", Duration: time.Second})
	var ce *chainrun.CommandError
	require.ErrorAs(t, cy.Err(), &ce)
	assert.Contains(t, ce.Error(), `invalid easing "bounce"`)
}
