package static

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/chromedp/chainrun"
)

var namedColors = map[string]color.RGBA{
	"white": {0xff, 0xff, 0xff, 0xff},
	"black": {0, 0, 0, 0xff},
	"red":   {0xff, 0, 0, 0xff},
	"green": {0, 0x80, 0, 0xff},
	"blue":  {0, 0, 0xff, 0xff},
	"gray":  {0x80, 0x80, 0x80, 0xff},
}

// parseColor parses #rgb, #rrggbb or a few color names.
func parseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 || !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, nil
}

// Screenshot satisfies chainrun.Screenshotter. The capture is white with
// the box of every rendered element carrying data-color painted in
// document order.
func (b *Browser) Screenshot(ctx context.Context, id chainrun.NodeID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.doc

	area := chainrun.Rect{Width: float64(b.width), Height: float64(b.height)}
	if id != chainrun.WindowNode && id != chainrun.DocumentNode {
		n, err := d.node(id)
		if err != nil {
			return nil, err
		}
		area = d.viewBox(n)
	}
	if area.Empty() {
		return nil, fmt.Errorf("node %d has an empty box", id)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(math.Round(area.Width)), int(math.Round(area.Height))))
	draw.Draw(img, img.Bounds(), image.NewUniform(namedColors["white"]), image.Point{}, draw.Src)
	for _, n := range elements(d.root()) {
		if err := d.paint(img, area, n); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) paint(img *image.RGBA, area chainrun.Rect, n *html.Node) error {
	v, ok := attr(n, "data-color")
	if !ok || !d.rendered(n) {
		return nil
	}
	c, err := parseColor(v)
	if err != nil {
		return err
	}
	box := d.viewBox(n)
	r := image.Rect(
		int(math.Round(box.X-area.X)), int(math.Round(box.Y-area.Y)),
		int(math.Round(box.X-area.X+box.Width)), int(math.Round(box.Y-area.Y+box.Height)),
	).Intersect(img.Bounds())
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	return nil
}
