package scan

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/mastercactapus/lasersim/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func whiteGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestRuns(t *testing.T) {
	img := whiteGray(8, 4)
	for x := 2; x <= 4; x++ {
		img.SetGray(x, 1, color.Gray{Y: 10})
	}
	img.SetGray(6, 3, color.Gray{Y: 127})
	img.SetGray(7, 3, color.Gray{Y: 0})
	img.SetGray(0, 2, color.Gray{Y: 128})

	assert.Equal(t, []Run{
		{Y: 1, X0: 2, X1: 4},
		{Y: 3, X0: 6, X1: 7},
	}, Runs(img, Options{}))

	assert.Equal(t, []Run{
		{Y: 1, X0: 2, X1: 4},
		{Y: 2, X0: 0, X1: 0},
		{Y: 3, X0: 6, X1: 7},
	}, Runs(img, Options{Threshold: 200}))

	assert.Equal(t, []Run{
		{Y: 0, X0: 6, X1: 6},
	}, Runs(img.SubImage(image.Rect(0, 3, 8, 4)).(*image.Gray), Options{Step: 2}))
}

func TestCommands(t *testing.T) {
	img := whiteGray(8, 4)
	for x := 2; x <= 4; x++ {
		img.SetGray(x, 1, color.Gray{})
	}
	img.SetGray(6, 3, color.Gray{})
	img.SetGray(7, 3, color.Gray{})

	assert.Equal(t, []protocol.Command{
		protocol.Move(0, 0),
		protocol.Laser(false),
		protocol.Move(-2, 1),
		protocol.Laser(true),
		protocol.Move(0, 1),
		protocol.Laser(false),
		protocol.Move(2, -1),
		protocol.Laser(true),
		protocol.Move(3, -1),
		protocol.Laser(false),
	}, Commands(img, Options{}))

	assert.Equal(t, []protocol.Command{protocol.Move(0, 0), protocol.Laser(false)}, Commands(whiteGray(3, 3), Options{}))
}

func TestCommands_Clamp(t *testing.T) {
	img := whiteGray(800, 600)
	img.SetGray(0, 0, color.Gray{})

	cmds := Commands(img, Options{})
	require.Len(t, cmds, 6)
	assert.Equal(t, protocol.Move(-250, 250), cmds[2])
	assert.Equal(t, protocol.Move(-250, 250), cmds[4])
}

func TestFit(t *testing.T) {
	check := func(w, h, ew, eh int) {
		t.Helper()
		g, err := Fit(image.NewRGBA(image.Rect(0, 0, w, h)), Width, Height)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, ew, eh), g.Bounds())
	}

	check(1600, 600, 800, 300)
	check(100, 100, 600, 600)
	check(10, 1000, 6, 600)
	check(800, 600, 800, 600)

	_, err := Fit(image.NewRGBA(image.Rect(0, 0, 0, 10)), Width, Height)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	for x := 0; x < 4; x++ {
		src.Set(x, 1, color.Black)
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	cmds, err := Image(&buf, Options{})
	require.NoError(t, err)
	require.True(t, len(cmds) > 2)
	assert.Equal(t, protocol.Move(0, 0), cmds[0])
	assert.Equal(t, protocol.Laser(true), cmds[3])

	_, err = Image(bytes.NewReader([]byte("not an image")), Options{})
	assert.Error(t, err)
}

func TestLoad_BMP(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 2))
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, src))

	img, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 2), img.Bounds())
}
