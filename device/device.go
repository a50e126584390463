// Package device contains named viewport presets for use with the
// Viewport commands.
package device

import (
	"fmt"
	"sort"
	"strings"
)

// Info holds device information.
type Info struct {
	// Name is the preset name.
	Name string

	// Width is the viewport width.
	Width int64

	// Height is the viewport height.
	Height int64

	// Scale is the device viewport scale factor.
	Scale float64

	// Landscape indicates whether or not the device is in landscape mode or
	// not.
	Landscape bool

	// Mobile indicates whether it is a mobile device or not.
	Mobile bool

	// Touch indicates whether the device has touch enabled.
	Touch bool
}

// String satisfies fmt.Stringer.
func (i Info) String() string {
	return i.Name
}

// Rotate returns the device in the other orientation, with width and height
// swapped.
func (i Info) Rotate() Info {
	i.Width, i.Height = i.Height, i.Width
	i.Landscape = !i.Landscape
	return i
}

var presets = map[string]Info{
	"ipad-2":        {"ipad-2", 768, 1024, 2, false, true, true},
	"ipad-mini":     {"ipad-mini", 768, 1024, 2, false, true, true},
	"iphone-3":      {"iphone-3", 320, 480, 2, false, true, true},
	"iphone-4":      {"iphone-4", 320, 480, 2, false, true, true},
	"iphone-5":      {"iphone-5", 320, 568, 2, false, true, true},
	"iphone-6":      {"iphone-6", 375, 667, 2, false, true, true},
	"iphone-6+":     {"iphone-6+", 414, 736, 3, false, true, true},
	"iphone-7":      {"iphone-7", 375, 667, 2, false, true, true},
	"iphone-8":      {"iphone-8", 375, 667, 2, false, true, true},
	"iphone-x":      {"iphone-x", 375, 812, 3, false, true, true},
	"iphone-xr":     {"iphone-xr", 414, 896, 2, false, true, true},
	"iphone-se2":    {"iphone-se2", 375, 667, 2, false, true, true},
	"macbook-11":    {"macbook-11", 1366, 768, 1, false, false, false},
	"macbook-13":    {"macbook-13", 1280, 800, 1, false, false, false},
	"macbook-15":    {"macbook-15", 1440, 900, 1, false, false, false},
	"macbook-16":    {"macbook-16", 1536, 960, 1, false, false, false},
	"samsung-note9": {"samsung-note9", 414, 846, 3.5, false, true, true},
	"samsung-s10":   {"samsung-s10", 360, 760, 4, false, true, true},
}

// Lookup returns the preset for name. An orientation of "landscape" rotates
// the preset; "portrait" or "" leave it as is.
func Lookup(name, orientation string) (Info, error) {
	info, ok := presets[strings.ToLower(name)]
	if !ok {
		return Info{}, fmt.Errorf("unknown viewport preset %q", name)
	}
	switch strings.ToLower(orientation) {
	case "", "portrait":
	case "landscape":
		info = info.Rotate()
	default:
		return Info{}, fmt.Errorf("invalid orientation %q", orientation)
	}
	return info, nil
}

// Names returns the sorted preset names.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
