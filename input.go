package chainrun

import (
	"github.com/chromedp/chainrun/kb"
)

// MouseOption is a mouse event option.
type MouseOption = func(*Event)

// Button is a mouse event option to set the button to click.
func Button(b MouseButton) MouseOption {
	return func(ev *Event) {
		ev.Button = b
	}
}

// ButtonModifiers is a mouse event option to add modifiers for the button.
func ButtonModifiers(modifiers ...Modifier) MouseOption {
	return func(ev *Event) {
		for _, m := range modifiers {
			ev.Modifiers |= m
		}
	}
}

// ClickCount is a mouse event option to set the click count.
func ClickCount(n int) MouseOption {
	return func(ev *Event) {
		ev.ClickCount = n
	}
}

// MouseEvent builds a mouse event at the viewport point x, y.
func MouseEvent(typ EventType, x, y float64, opts ...MouseOption) Event {
	ev := Event{Type: typ, X: x, Y: y, Button: ButtonNone}
	for _, o := range opts {
		o(&ev)
	}
	return ev
}

// MouseClickXY returns the events of a left button click at x, y: a move
// followed by a press and release for every click up to count.
func MouseClickXY(x, y float64, count int) []Event {
	evs := []Event{MouseEvent(MouseMoved, x, y)}
	for n := 1; n <= count; n++ {
		evs = append(evs,
			MouseEvent(MousePressed, x, y, Button(ButtonLeft), ClickCount(n)),
			MouseEvent(MouseReleased, x, y, Button(ButtonLeft), ClickCount(n)),
		)
	}
	return evs
}

// KeyEvent builds a key event of typ for k with the held modifiers.
func KeyEvent(typ EventType, k *kb.Key, held Modifier) Event {
	ev := Event{Type: typ, Key: k, Modifiers: held}
	if typ == KeyChar {
		ev.Text = k.Text
	}
	return ev
}

// keystroke returns the down, char and up events of one key press. The
// char event is left out for keys that print nothing and while a command
// modifier is held.
func keystroke(k *kb.Key, held Modifier, commands ...string) []Event {
	mods := held
	if k.Shift {
		mods |= ModifierShift
	}
	down := KeyEvent(KeyDown, k, mods)
	down.Commands = commands
	evs := []Event{down}
	if k.Print && held&(ModifierCtrl|ModifierMeta|ModifierAlt) == 0 {
		evs = append(evs, KeyEvent(KeyChar, k, mods))
	}
	return append(evs, KeyEvent(KeyUp, k, mods))
}
