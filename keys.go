package chainrun

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chromedp/chainrun/kb"
)

// keyToken is one unit of typed text: a printable rune, a special key, a
// modifier to hold, or the select-all chord.
type keyToken struct {
	r         rune
	special   string
	modifier  Modifier
	selectAll bool
}

// specialTokens maps {token} names to key names.
var specialTokens = map[string]string{
	"enter":       kb.Enter,
	"tab":         kb.Tab,
	"esc":         kb.Escape,
	"backspace":   kb.Backspace,
	"del":         kb.Delete,
	"leftarrow":   kb.ArrowLeft,
	"rightarrow":  kb.ArrowRight,
	"uparrow":     kb.ArrowUp,
	"downarrow":   kb.ArrowDown,
	"home":        kb.Home,
	"end":         kb.End,
	"pageup":      kb.PageUp,
	"pagedown":    kb.PageDown,
	"insert":      kb.Insert,
	"movetostart": kb.Home,
	"movetoend":   kb.End,
}

// modifierTokens maps {token} names to modifiers.
var modifierTokens = map[string]Modifier{
	"alt":     ModifierAlt,
	"option":  ModifierAlt,
	"ctrl":    ModifierCtrl,
	"control": ModifierCtrl,
	"meta":    ModifierMeta,
	"command": ModifierMeta,
	"cmd":     ModifierMeta,
	"shift":   ModifierShift,
}

var modifierKeys = map[Modifier]string{
	ModifierAlt:   kb.Alt,
	ModifierCtrl:  kb.Control,
	ModifierMeta:  kb.Meta,
	ModifierShift: kb.Shift,
}

// parseKeys splits text into key tokens. Special keys and modifiers are
// written in braces; "{{}" types a literal brace.
func parseKeys(text string) ([]keyToken, error) {
	var toks []keyToken
	for i := 0; i < len(text); {
		if text[i] != '{' {
			r, size := utf8.DecodeRuneInString(text[i:])
			toks = append(toks, keyToken{r: r})
			i += size
			continue
		}
		if strings.HasPrefix(text[i:], "{{}") {
			toks = append(toks, keyToken{r: '{'})
			i += 3
			continue
		}
		end := strings.IndexByte(text[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated special key in %q", text)
		}
		name := strings.ToLower(text[i+1 : i+end])
		i += end + 1
		switch {
		case name == "selectall":
			toks = append(toks, keyToken{selectAll: true})
		case specialTokens[name] != "":
			toks = append(toks, keyToken{special: specialTokens[name]})
		case modifierTokens[name] != 0:
			toks = append(toks, keyToken{modifier: modifierTokens[name]})
		default:
			return nil, fmt.Errorf("unknown special key {%s} in %q", name, text)
		}
	}
	return toks, nil
}

// typer turns key tokens into events while tracking held modifiers.
type typer struct {
	held  Modifier
	order []Modifier
}

// events returns the events for tok.
func (t *typer) events(tok keyToken) []Event {
	switch {
	case tok.modifier != 0:
		if t.held&tok.modifier != 0 {
			return nil
		}
		t.held |= tok.modifier
		t.order = append(t.order, tok.modifier)
		return []Event{KeyEvent(KeyDown, kb.Specials[modifierKeys[tok.modifier]], t.held)}
	case tok.selectAll:
		return keystroke(kb.Encode('a'), t.held|ModifierCtrl, "selectAll")
	case tok.special != "":
		return keystroke(kb.Specials[tok.special], t.held)
	}
	return keystroke(kb.Encode(tok.r), t.held)
}

// release returns the key up events of the held modifiers, last pressed
// first.
func (t *typer) release() []Event {
	var evs []Event
	for i := len(t.order) - 1; i >= 0; i-- {
		m := t.order[i]
		t.held &^= m
		evs = append(evs, KeyEvent(KeyUp, kb.Specials[modifierKeys[m]], t.held))
	}
	t.order = nil
	return evs
}
