package chainrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/orisano/pixelmatch"
	"github.com/spf13/afero"
)

// ErrSnapshotMismatch is the error returned when a screenshot differs from
// its baseline.
var ErrSnapshotMismatch = errors.New("screenshot does not match baseline")

// snapshotPath returns where the baseline of name lives.
func (cy *Cy) snapshotPath(name string) string {
	return filepath.Join(cy.s.cfg.SnapshotDir.String, name+".png")
}

// compareSnapshot compares a PNG capture with the stored baseline of name,
// writing the baseline when there is none yet. It returns the number of
// differing pixels.
func (cy *Cy) compareSnapshot(name string, capture []byte) (int, error) {
	fs := cy.s.fs
	path := cy.snapshotPath(name)
	baseline, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return 0, err
		}
		cy.s.log.WithField("snapshot", path).Info("writing new baseline")
		return 0, afero.WriteFile(fs, path, capture, 0o644)
	}
	if err != nil {
		return 0, err
	}
	want, err := png.Decode(bytes.NewReader(baseline))
	if err != nil {
		return 0, fmt.Errorf("decoding baseline %s: %w", path, err)
	}
	got, err := png.Decode(bytes.NewReader(capture))
	if err != nil {
		return 0, fmt.Errorf("decoding capture: %w", err)
	}
	if !got.Bounds().Size().Eq(want.Bounds().Size()) {
		return 0, fmt.Errorf("%w: size %v, baseline %v", ErrSnapshotMismatch, got.Bounds().Size(), want.Bounds().Size())
	}
	return pixelmatch.MatchPixel(toRGBA(got), toRGBA(want), pixelmatch.Threshold(cy.s.cfg.SnapshotThreshold.Float64))
}

// toRGBA moves img to the origin so that images of equal size compare
// pixel by pixel.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func (cy *Cy) screenshot(ctx context.Context, name string, id NodeID) error {
	shooter, ok := cy.s.provider.(Screenshotter)
	if !ok {
		return ErrUnsupported
	}
	capture, err := shooter.Screenshot(ctx, id)
	if err != nil {
		return err
	}
	diff, err := cy.compareSnapshot(name, capture)
	if err != nil {
		return err
	}
	if diff > 0 {
		return fmt.Errorf("%w: %d pixels differ", ErrSnapshotMismatch, diff)
	}
	return nil
}

// Screenshot captures the viewport and compares it with the baseline
// stored under name in the snapshot directory. A missing baseline is
// written instead.
func (cy *Cy) Screenshot(name string) Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	cy.logCommand("screenshot", name)
	if err := cy.screenshot(cy.ctx, name, WindowNode); err != nil {
		return cy.fail(&CommandError{Command: "screenshot", Locator: name, Err: err})
	}
	return cy.settled("window()", NodeSubject(WindowNode))
}

// Screenshot captures the subject element and compares it with the
// baseline stored under name.
func (c Chain) Screenshot(name string) Chain {
	return c.act("screenshot", "a single element", single, nil, attachedOnly, false, 0, func(ctx context.Context, nodes []NodeID) error {
		return c.cy.screenshot(ctx, name, nodes[0])
	})
}
