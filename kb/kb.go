// Package kb provides US keyboard layout mappings used to turn typed text and
// named special keys into key events.
package kb

import "strings"

// Key contains information for generating a key press based off the unicode
// value or a special key name.
//
// Example data for the following keys:
//
//	'\r'       | ','   '<'   | 'a'   'A'   | "ArrowLeft"
//	___________________________________________________
type Key struct {
	// Code is the physical key code:
	//	"Enter"    | "Comma"     | "KeyA"      | "ArrowLeft"
	Code string
	// Key is the key value:
	//	"Enter"    | ","   "<"   | "a"   "A"   | "ArrowLeft"
	Key string
	// Text is the text for printable keys:
	//	"\r"       | ","   "<"   | "a"   "A"   | ""
	Text string
	// Unmodified is the unmodified text for printable keys:
	//	"\r"       | ","   ","   | "a"   "a"   | ""
	Unmodified string
	// Native is the native key code.
	//	0x0d       | 0x2c  0x3c  | 0x61  0x41  | 0x25
	Native int64
	// Windows is the windows virtual key code.
	//	0x0d       | 0xbc  0xbc  | 0x41  0x41  | 0x25
	Windows int64
	// Shift indicates whether or not the Shift modifier should be sent.
	//	false      | false true  | false true  | false
	Shift bool
	// Print indicates whether or not the key produces text (ie, should a
	// "char" event be generated).
	//	true       | true  true  | true  true  | false
	Print bool
}

// Special key names.
const (
	Enter      = "Enter"
	Tab        = "Tab"
	Escape     = "Escape"
	Backspace  = "Backspace"
	Delete     = "Delete"
	Insert     = "Insert"
	Home       = "Home"
	End        = "End"
	PageUp     = "PageUp"
	PageDown   = "PageDown"
	ArrowLeft  = "ArrowLeft"
	ArrowUp    = "ArrowUp"
	ArrowRight = "ArrowRight"
	ArrowDown  = "ArrowDown"
	Alt        = "Alt"
	Control    = "Control"
	Meta       = "Meta"
	Shift      = "Shift"
)

// Keys is the map of printable runes to their key definitions.
var Keys = map[rune]*Key{}

// Specials is the map of special key names to their key definitions.
var Specials = map[string]*Key{
	Enter:      {Code: "Enter", Key: Enter, Text: "\r", Unmodified: "\r", Native: 0x0d, Windows: 0x0d, Print: true},
	Tab:        {Code: "Tab", Key: Tab, Native: 0x09, Windows: 0x09},
	Escape:     {Code: "Escape", Key: Escape, Native: 0x1b, Windows: 0x1b},
	Backspace:  {Code: "Backspace", Key: Backspace, Native: 0x08, Windows: 0x08},
	Delete:     {Code: "Delete", Key: Delete, Native: 0x2e, Windows: 0x2e},
	Insert:     {Code: "Insert", Key: Insert, Native: 0x2d, Windows: 0x2d},
	Home:       {Code: "Home", Key: Home, Native: 0x24, Windows: 0x24},
	End:        {Code: "End", Key: End, Native: 0x23, Windows: 0x23},
	PageUp:     {Code: "PageUp", Key: PageUp, Native: 0x21, Windows: 0x21},
	PageDown:   {Code: "PageDown", Key: PageDown, Native: 0x22, Windows: 0x22},
	ArrowLeft:  {Code: "ArrowLeft", Key: ArrowLeft, Native: 0x25, Windows: 0x25},
	ArrowUp:    {Code: "ArrowUp", Key: ArrowUp, Native: 0x26, Windows: 0x26},
	ArrowRight: {Code: "ArrowRight", Key: ArrowRight, Native: 0x27, Windows: 0x27},
	ArrowDown:  {Code: "ArrowDown", Key: ArrowDown, Native: 0x28, Windows: 0x28},
	Alt:        {Code: "AltLeft", Key: Alt, Native: 0x12, Windows: 0x12},
	Control:    {Code: "ControlLeft", Key: Control, Native: 0x11, Windows: 0x11},
	Meta:       {Code: "MetaLeft", Key: Meta, Native: 0x5b, Windows: 0x5b},
	Shift:      {Code: "ShiftLeft", Key: Shift, Native: 0x10, Windows: 0x10},
}

// punct lists the US layout punctuation keys as code, windows key code,
// unshifted rune, and shifted rune.
var punct = []struct {
	code    string
	windows int64
	r, s    rune
}{
	{"Backquote", 0xc0, '`', '~'},
	{"Minus", 0xbd, '-', '_'},
	{"Equal", 0xbb, '=', '+'},
	{"BracketLeft", 0xdb, '[', '{'},
	{"BracketRight", 0xdd, ']', '}'},
	{"Backslash", 0xdc, '\\', '|'},
	{"Semicolon", 0xba, ';', ':'},
	{"Quote", 0xde, '\'', '"'},
	{"Comma", 0xbc, ',', '<'},
	{"Period", 0xbe, '.', '>'},
	{"Slash", 0xbf, '/', '?'},
}

// digitShift holds the shifted runes of the digit row, starting at '0'.
const digitShift = ")!@#$%^&*("

func init() {
	for r := 'a'; r <= 'z'; r++ {
		code := "Key" + strings.ToUpper(string(r))
		win := int64(r - 'a' + 'A')
		Keys[r] = &Key{Code: code, Key: string(r), Text: string(r), Unmodified: string(r), Native: int64(r), Windows: win, Print: true}
		u := r - 'a' + 'A'
		Keys[u] = &Key{Code: code, Key: string(u), Text: string(u), Unmodified: string(r), Native: int64(u), Windows: win, Shift: true, Print: true}
	}
	for i, s := range digitShift {
		r := rune('0' + i)
		code := "Digit" + string(r)
		Keys[r] = &Key{Code: code, Key: string(r), Text: string(r), Unmodified: string(r), Native: int64(r), Windows: int64(r), Print: true}
		Keys[s] = &Key{Code: code, Key: string(s), Text: string(s), Unmodified: string(r), Native: int64(s), Windows: int64(r), Shift: true, Print: true}
	}
	for _, p := range punct {
		Keys[p.r] = &Key{Code: p.code, Key: string(p.r), Text: string(p.r), Unmodified: string(p.r), Native: int64(p.r), Windows: p.windows, Print: true}
		Keys[p.s] = &Key{Code: p.code, Key: string(p.s), Text: string(p.s), Unmodified: string(p.r), Native: int64(p.s), Windows: p.windows, Shift: true, Print: true}
	}
	Keys[' '] = &Key{Code: "Space", Key: " ", Text: " ", Unmodified: " ", Native: 0x20, Windows: 0x20, Print: true}
	Keys['\r'] = Specials[Enter]
	Keys['\n'] = Specials[Enter]
	Keys['\t'] = Specials[Tab]
	Keys['\b'] = Specials[Backspace]
}

// Encode returns the key definition for r. Runes outside of the US layout
// produce an unidentified printable key carrying only the text.
func Encode(r rune) *Key {
	if k, ok := Keys[r]; ok {
		return k
	}
	return &Key{Key: "Unidentified", Text: string(r), Unmodified: string(r), Print: true}
}
