package chainrun

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun/kb"
)

func TestParseKeys(t *testing.T) {
	t.Parallel()

	toks, err := parseKeys("aé{Enter}{{}{shift}{selectall}")
	require.NoError(t, err)
	assert.Equal(t, []keyToken{
		{r: 'a'},
		{r: 'é'},
		{special: kb.Enter},
		{r: '{'},
		{modifier: ModifierShift},
		{selectAll: true},
	}, toks)

	toks, err = parseKeys("\xffab")
	require.NoError(t, err)
	assert.Equal(t, []keyToken{{r: utf8.RuneError}, {r: 'a'}, {r: 'b'}}, toks)

	_, err = parseKeys("{enter")
	assert.ErrorContains(t, err, "unterminated")
	_, err = parseKeys("{frobnicate}")
	assert.ErrorContains(t, err, "unknown special key {frobnicate}")
}

func TestTyperModifiers(t *testing.T) {
	t.Parallel()

	var ty typer
	down := ty.events(keyToken{modifier: ModifierCtrl})
	require.Len(t, down, 1)
	assert.Equal(t, KeyDown, down[0].Type)
	assert.Nil(t, ty.events(keyToken{modifier: ModifierCtrl}), "held modifiers are pressed once")
	ty.events(keyToken{modifier: ModifierShift})

	for _, ev := range ty.events(keyToken{r: 'x'}) {
		assert.Equal(t, ModifierCtrl|ModifierShift, ev.Modifiers, ev.Type)
	}

	up := ty.release()
	require.Len(t, up, 2)
	assert.Equal(t, KeyUp, up[0].Type)
	assert.Equal(t, kb.Shift, up[0].Key.Key, "last pressed is released first")
	assert.Equal(t, kb.Control, up[1].Key.Key)
	assert.Empty(t, ty.release())
}
