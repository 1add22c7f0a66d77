// Package scan converts raster images into plotter command sequences.
package scan

import (
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/mastercactapus/lasersim/coord"
	"github.com/mastercactapus/lasersim/protocol"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	// Width and Height bound the scanned area in pixels.
	Width  = 800
	Height = 600

	DefaultThreshold = 128
)

var ErrEmptyImage = errors.New("image has no pixels")

type Options struct {
	// Pixels darker than Threshold are burned.
	Threshold uint8

	// Step is the distance in pixels between scanned rows and columns.
	Step int
}

// Load decodes a PNG, JPEG or BMP image.
func Load(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func LoadFile(name string) (image.Image, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return Load(fd)
}

// Fit scales img to fit within w x h keeping its aspect ratio, and converts
// it to grayscale.
func Fit(img image.Image, w, h int) (*image.Gray, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	dw, dh := w, b.Dy()*w/b.Dx()
	if dh > h {
		dw, dh = b.Dx()*h/b.Dy(), h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// Run is a horizontal span of dark pixels on row Y, from X0 to X1 inclusive.
type Run struct {
	Y, X0, X1 int
}

// Runs finds the dark spans of img, scanning every opt.Step rows and columns.
func Runs(img *image.Gray, opt Options) []Run {
	opt = opt.withDefaults()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var runs []Run
	for y := 0; y < h; y += opt.Step {
		start := -1
		for x := 0; x < w; x += opt.Step {
			if img.GrayAt(b.Min.X+x, b.Min.Y+y).Y < opt.Threshold {
				if start < 0 {
					start = x
				}
				continue
			}
			if start >= 0 {
				runs = append(runs, Run{Y: y, X0: start, X1: x - opt.Step})
				start = -1
			}
		}
		if start >= 0 {
			runs = append(runs, Run{Y: y, X0: start, X1: w - opt.Step})
		}
	}
	return runs
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Step < 1 {
		o.Step = 1
	}
	return o
}

// Commands converts img into a command sequence that burns every dark run.
//
// The image center maps to the machine origin with y pointing up.
func Commands(img *image.Gray, opt Options) []protocol.Command {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	cmds := []protocol.Command{
		protocol.Move(0, 0),
		protocol.Laser(false),
	}
	for _, r := range Runs(img, opt) {
		y := coord.Clamp(float64(h/2 - r.Y))
		cmds = append(cmds,
			protocol.Move(coord.Clamp(float64(r.X0-w/2)), y),
			protocol.Laser(true),
			protocol.Move(coord.Clamp(float64(r.X1-w/2)), y),
			protocol.Laser(false),
		)
	}
	return cmds
}

// Image loads, fits and converts an image in one step.
func Image(r io.Reader, opt Options) ([]protocol.Command, error) {
	img, err := Load(r)
	if err != nil {
		return nil, err
	}
	g, err := Fit(img, Width, Height)
	if err != nil {
		return nil, err
	}
	return Commands(g, opt), nil
}
