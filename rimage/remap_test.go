package rimage

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

// funcMap is a SourceMap backed by a function.
type funcMap struct {
	bounds image.Rectangle
	source func(x, y int) r2.Point
}

func (fm funcMap) Bounds() image.Rectangle {
	return fm.bounds
}

func (fm funcMap) SourceAt(x, y int) r2.Point {
	return fm.source(x, y)
}

// gradientImage is opaque with R = 10 * x and G = 10 * y.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(10 * y), B: 7, A: 255})
		}
	}
	return img
}

func constantMap(w, h int, pt r2.Point) funcMap {
	return funcMap{image.Rect(0, 0, w, h), func(x, y int) r2.Point { return pt }}
}

func TestRemapIdentity(t *testing.T) {
	src := gradientImage(9, 6)
	identity := funcMap{src.Bounds(), func(x, y int) r2.Point { return r2.Point{X: float64(x), Y: float64(y)} }}
	for _, interp := range []Interpolation{NearestNeighbor, Bilinear, Area, Bicubic} {
		out, err := Remap(context.Background(), src, identity, RemapOptions{Interpolation: interp, Border: BorderReplicate})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Bounds(), test.ShouldResemble, src.Bounds())
		test.That(t, out.Pix, test.ShouldResemble, src.Pix)
	}
}

func TestRemapBilinear(t *testing.T) {
	src := gradientImage(4, 4)
	out, err := Remap(context.Background(), src, constantMap(1, 1, r2.Point{X: 1.5, Y: 2.25}), RemapOptions{Interpolation: Bilinear})
	test.That(t, err, test.ShouldBeNil)
	c := out.NRGBAAt(0, 0)
	test.That(t, c.R, test.ShouldEqual, uint8(15))
	test.That(t, c.G, test.ShouldEqual, uint8(23))
	test.That(t, c.B, test.ShouldEqual, uint8(7))
	test.That(t, c.A, test.ShouldEqual, uint8(255))
}

func TestRemapNearest(t *testing.T) {
	src := gradientImage(4, 4)
	out, err := Remap(context.Background(), src, constantMap(1, 1, r2.Point{X: 1.6, Y: 2.4}), RemapOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{R: 20, G: 20, B: 7, A: 255})
}

func TestRemapBicubicLinearRamp(t *testing.T) {
	// halfway between pixels the kernel is symmetric, so a linear ramp is reproduced exactly
	src := gradientImage(8, 8)
	out, err := Remap(context.Background(), src, constantMap(1, 1, r2.Point{X: 3.5, Y: 4.5}), RemapOptions{Interpolation: Bicubic})
	test.That(t, err, test.ShouldBeNil)
	c := out.NRGBAAt(0, 0)
	test.That(t, c.R, test.ShouldEqual, uint8(35))
	test.That(t, c.G, test.ShouldEqual, uint8(45))
}

func TestRemapBorders(t *testing.T) {
	src := gradientImage(4, 4)
	outside := constantMap(1, 1, r2.Point{X: -5, Y: 2})

	out, err := Remap(context.Background(), src, outside, RemapOptions{Border: BorderConstant})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{A: 255})

	fill := color.NRGBA{R: 1, G: 2, B: 3, A: 255}
	out, err = Remap(context.Background(), src, outside, RemapOptions{Border: BorderConstant, Fill: fill})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, fill)

	out, err = Remap(context.Background(), src, outside, RemapOptions{Border: BorderReplicate})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{R: 0, G: 20, B: 7, A: 255})

	out, err = Remap(context.Background(), src, outside, RemapOptions{Border: BorderTransparent})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{})

	// half a pixel off the edge mixes the edge with the fill color
	out, err = Remap(context.Background(), src, constantMap(1, 1, r2.Point{X: 3.5, Y: 0}),
		RemapOptions{Interpolation: Bilinear, Border: BorderConstant, Fill: color.NRGBA{R: 130, G: 0, B: 7, A: 255}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0).R, test.ShouldEqual, uint8(80))
}

func TestRemapNonFiniteSource(t *testing.T) {
	src := gradientImage(4, 4)
	nan := constantMap(1, 1, r2.Point{X: math.NaN(), Y: 1})

	out, err := Remap(context.Background(), src, nan, RemapOptions{Interpolation: Bicubic, Border: BorderReplicate})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{A: 255})

	out, err = Remap(context.Background(), src, constantMap(1, 1, r2.Point{X: math.Inf(1), Y: 1}), RemapOptions{Border: BorderTransparent})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{})
}

func TestRemapOffsetBounds(t *testing.T) {
	src := gradientImage(4, 4)
	shifted := funcMap{image.Rect(2, 1, 4, 3), func(x, y int) r2.Point { return r2.Point{X: float64(x), Y: float64(y)} }}
	out, err := Remap(context.Background(), src, shifted, RemapOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 2))
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, src.NRGBAAt(2, 1))
	test.That(t, out.NRGBAAt(1, 1), test.ShouldResemble, src.NRGBAAt(3, 2))
}

func TestRemapErrors(t *testing.T) {
	src := gradientImage(4, 4)
	m := constantMap(1, 1, r2.Point{})

	_, err := Remap(context.Background(), nil, m, RemapOptions{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Remap(context.Background(), src, nil, RemapOptions{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Remap(context.Background(), image.NewNRGBA(image.Rectangle{}), m, RemapOptions{})
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Remap(ctx, src, m, RemapOptions{})
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestParseInterpolation(t *testing.T) {
	for name, expected := range map[string]Interpolation{
		"nearest":  NearestNeighbor,
		"Bilinear": Bilinear,
		"linear":   Bilinear,
		"area":     Area,
		" cubic ":  Bicubic,
		"bicubic":  Bicubic,
	} {
		interp, err := ParseInterpolation(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, interp, test.ShouldEqual, expected)
	}
	_, err := ParseInterpolation("lanczos")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown interpolation")

	for _, interp := range []Interpolation{NearestNeighbor, Bilinear, Area, Bicubic} {
		parsed, err := ParseInterpolation(interp.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, interp)
	}
}

func TestParseBorderMode(t *testing.T) {
	for _, mode := range []BorderMode{BorderConstant, BorderReplicate, BorderTransparent} {
		parsed, err := ParseBorderMode(mode.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, mode)
	}
	_, err := ParseBorderMode("wrap")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, BorderMode(42).String(), test.ShouldEqual, "unknown")
}

func TestCubicWeight(t *testing.T) {
	test.That(t, cubicWeight(0), test.ShouldEqual, 1.0)
	test.That(t, cubicWeight(1), test.ShouldAlmostEqual, 0)
	test.That(t, cubicWeight(-2), test.ShouldAlmostEqual, 0)
	test.That(t, cubicWeight(3), test.ShouldEqual, 0.0)
	sum := 0.
	for k := -1; k <= 2; k++ {
		sum += cubicWeight(0.3 - float64(k))
	}
	test.That(t, sum, test.ShouldAlmostEqual, 1)
}
