package rimage

import (
	"context"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/ocam/utils"
)

// Interpolation selects how a source image is sampled at sub-pixel locations.
type Interpolation int

// The supported interpolations.
const (
	NearestNeighbor Interpolation = iota
	Bilinear
	// Area behaves as Bilinear when remapping, where there is no single scale factor to average over.
	Area
	Bicubic
)

func (i Interpolation) String() string {
	switch i {
	case NearestNeighbor:
		return "nearest"
	case Bilinear:
		return "bilinear"
	case Area:
		return "area"
	case Bicubic:
		return "bicubic"
	default:
		return "unknown"
	}
}

// ParseInterpolation returns the interpolation with the given name.
func ParseInterpolation(name string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest", "nearest_neighbor":
		return NearestNeighbor, nil
	case "bilinear", "linear":
		return Bilinear, nil
	case "area":
		return Area, nil
	case "bicubic", "cubic":
		return Bicubic, nil
	default:
		return 0, errors.Errorf("unknown interpolation %q", name)
	}
}

// BorderMode selects what a sample outside the source image reads.
type BorderMode int

// The supported border modes.
const (
	// BorderConstant reads the fill color.
	BorderConstant BorderMode = iota
	// BorderReplicate reads the nearest edge pixel.
	BorderReplicate
	// BorderTransparent leaves destination pixels that need outside samples fully transparent.
	BorderTransparent
)

func (b BorderMode) String() string {
	switch b {
	case BorderConstant:
		return "constant"
	case BorderReplicate:
		return "replicate"
	case BorderTransparent:
		return "transparent"
	default:
		return "unknown"
	}
}

// ParseBorderMode returns the border mode with the given name.
func ParseBorderMode(name string) (BorderMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "constant":
		return BorderConstant, nil
	case "replicate":
		return BorderReplicate, nil
	case "transparent":
		return BorderTransparent, nil
	default:
		return 0, errors.Errorf("unknown border mode %q", name)
	}
}

// RemapOptions configures Remap. The zero value is nearest neighbor sampling with an opaque
// black border.
type RemapOptions struct {
	Interpolation Interpolation
	Border        BorderMode
	// Fill is the border color for BorderConstant. Nil means opaque black.
	Fill color.Color
}

// SourceMap tells Remap where each destination pixel samples the source image.
type SourceMap interface {
	// Bounds is the destination rectangle.
	Bounds() image.Rectangle
	// SourceAt returns the source location, X being the column, read by destination pixel (x, y).
	// Non-finite locations are treated as outside the source.
	SourceAt(x, y int) r2.Point
}

// Remap builds a new image of mapping.Bounds() where every pixel is the source image sampled
// at mapping.SourceAt. Source pixel centers sit on integer coordinates.
func Remap(ctx context.Context, src image.Image, mapping SourceMap, opts RemapOptions) (*image.NRGBA, error) {
	ctx, span := trace.StartSpan(ctx, "rimage::Remap")
	defer span.End()

	if src == nil {
		return nil, errors.New("input image is nil")
	}
	if mapping == nil {
		return nil, errors.New("source map is nil")
	}
	if src.Bounds().Empty() {
		return nil, errors.New("input image is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newSampler(imaging.Clone(src), opts)
	bounds := mapping.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	err := utils.ParallelForEachPixel(image.Point{bounds.Dx(), bounds.Dy()}, func(x, y int) {
		pt := mapping.SourceAt(bounds.Min.X+x, bounds.Min.Y+y)
		c, ok := s.sample(pt.X, pt.Y)
		if !ok {
			return
		}
		dst.SetNRGBA(x, y, c)
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dst, nil
}

// rgba is a premultiplied color with channels in [0, 255].
type rgba [4]float64

type sampler struct {
	img    *image.NRGBA
	w, h   int
	interp Interpolation
	border BorderMode
	fill   rgba
}

func newSampler(img *image.NRGBA, opts RemapOptions) *sampler {
	fill := opts.Fill
	if fill == nil {
		fill = color.Black
	}
	r, g, b, a := fill.RGBA()
	return &sampler{
		img:    img,
		w:      img.Bounds().Dx(),
		h:      img.Bounds().Dy(),
		interp: opts.Interpolation,
		border: opts.Border,
		fill:   rgba{float64(r) / 257, float64(g) / 257, float64(b) / 257, float64(a) / 257},
	}
}

// pixel reads the premultiplied source pixel at (x, y), applying the border mode. ok is false
// when the pixel is outside the image and the border is transparent.
func (s *sampler) pixel(x, y int) (rgba, bool) {
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		switch s.border {
		case BorderReplicate:
			x = utils.ClampInt(x, 0, s.w-1)
			y = utils.ClampInt(y, 0, s.h-1)
		case BorderTransparent:
			return rgba{}, false
		default:
			return s.fill, true
		}
	}
	i := s.img.PixOffset(x, y)
	p := s.img.Pix[i : i+4 : i+4]
	alpha := float64(p[3]) / 255
	return rgba{float64(p[0]) * alpha, float64(p[1]) * alpha, float64(p[2]) * alpha, float64(p[3])}, true
}

func (s *sampler) sample(x, y float64) (color.NRGBA, bool) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) ||
		math.Abs(x) > math.MaxInt32 || math.Abs(y) > math.MaxInt32 {
		if s.border == BorderTransparent {
			return color.NRGBA{}, false
		}
		// no edge pixel is nearest to a point that does not exist
		return toNRGBA(s.fill), true
	}

	var acc rgba
	switch s.interp {
	case NearestNeighbor:
		c, ok := s.pixel(int(math.Floor(x+0.5)), int(math.Floor(y+0.5)))
		if !ok {
			return color.NRGBA{}, false
		}
		acc = c
	case Bicubic:
		x0, y0 := math.Floor(x), math.Floor(y)
		fx, fy := x-x0, y-y0
		var wx, wy [4]float64
		for k := 0; k < 4; k++ {
			wx[k] = cubicWeight(fx - float64(k-1))
			wy[k] = cubicWeight(fy - float64(k-1))
		}
		for j := 0; j < 4; j++ {
			for i := 0; i < 4; i++ {
				c, ok := s.pixel(int(x0)+i-1, int(y0)+j-1)
				if !ok {
					return color.NRGBA{}, false
				}
				acc.add(c, wx[i]*wy[j])
			}
		}
	default:
		x0, y0 := math.Floor(x), math.Floor(y)
		fx, fy := x-x0, y-y0
		weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
		for k, w := range weights {
			if w == 0 {
				continue
			}
			c, ok := s.pixel(int(x0)+k%2, int(y0)+k/2)
			if !ok {
				return color.NRGBA{}, false
			}
			acc.add(c, w)
		}
	}
	return toNRGBA(acc), true
}

func (c *rgba) add(o rgba, w float64) {
	for i := range c {
		c[i] += o[i] * w
	}
}

// cubicWeight is the Keys cubic convolution kernel with a = -0.75.
func cubicWeight(t float64) float64 {
	const a = -0.75
	t = math.Abs(t)
	switch {
	case t <= 1:
		return ((a+2)*t-(a+3))*t*t + 1
	case t < 2:
		return ((a*t-5*a)*t+8*a)*t - 4*a
	default:
		return 0
	}
}

func toNRGBA(c rgba) color.NRGBA {
	alpha := utils.ClampFloat64(c[3], 0, 255)
	if alpha == 0 {
		return color.NRGBA{}
	}
	scale := 255 / alpha
	return color.NRGBA{
		R: uint8(math.Round(utils.ClampFloat64(c[0]*scale, 0, 255))),
		G: uint8(math.Round(utils.ClampFloat64(c[1]*scale, 0, 255))),
		B: uint8(math.Round(utils.ClampFloat64(c[2]*scale, 0, 255))),
		A: uint8(math.Round(alpha)),
	}
}
