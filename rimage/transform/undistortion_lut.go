package transform

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/ocam/rimage"
	"go.viam.com/ocam/utils"
)

// ErrInvalidView is when the requested undistorted view cannot be generated.
var ErrInvalidView = errors.New("invalid undistortion view")

// NewInvalidViewError is used when a view parameter is out of range.
func NewInvalidViewError(msg string) error {
	return errors.Wrap(ErrInvalidView, msg)
}

// outOfGamut is written in place of coordinates that cannot be represented, so the remap border
// policy handles them like any other pixel off the sensor.
const outOfGamut = -1

// UndistortionLUT maps every pixel of an undistorted target image to the distorted source pixel
// it samples. MapRow and MapCol are row-major with Width*Height entries each.
type UndistortionLUT struct {
	Width  int
	Height int
	MapRow []float32
	MapCol []float32
}

// NewUndistortionLUT allocates an empty LUT for a target of the given size.
func NewUndistortionLUT(width, height int) *UndistortionLUT {
	return &UndistortionLUT{
		Width:  width,
		Height: height,
		MapRow: make([]float32, width*height),
		MapCol: make([]float32, width*height),
	}
}

// Index returns the offset of target pixel (x, y) into MapRow and MapCol.
func (lut *UndistortionLUT) Index(x, y int) int {
	return y*lut.Width + x
}

// At returns the source pixel sampled by target pixel (x, y).
func (lut *UndistortionLUT) At(x, y int) PixelPoint {
	idx := lut.Index(x, y)
	return PixelPoint{Row: float64(lut.MapRow[idx]), Col: float64(lut.MapCol[idx])}
}

// Bounds returns the target image rectangle.
func (lut *UndistortionLUT) Bounds() image.Rectangle {
	return image.Rect(0, 0, lut.Width, lut.Height)
}

// SourceAt returns the source location of target pixel (x, y) in image space.
func (lut *UndistortionLUT) SourceAt(x, y int) r2.Point {
	return lut.At(x, y).Point()
}

// Remap resamples the distorted image into the undistorted target described by the LUT.
func (lut *UndistortionLUT) Remap(ctx context.Context, img image.Image, opts rimage.RemapOptions) (*image.NRGBA, error) {
	return rimage.Remap(ctx, img, lut, opts)
}

func (lut *UndistortionLUT) set(x, y int, p PixelPoint) {
	idx := lut.Index(x, y)
	lut.MapRow[idx] = toLUTValue(p.Row)
	lut.MapCol[idx] = toLUTValue(p.Col)
}

func toLUTValue(v float64) float32 {
	f := float32(v)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return outOfGamut
	}
	return f
}

// PerspectiveView describes an undistorted perspective image: a plane perpendicular to the
// optical axis. ScaleFactor is a zoom knob: larger values bring the plane closer to the camera
// and widen the field of view.
type PerspectiveView struct {
	Width       int     `json:"width_px" yaml:"width_px"`
	Height      int     `json:"height_px" yaml:"height_px"`
	ScaleFactor float64 `json:"scale_factor" yaml:"scale_factor"`
}

// CheckValid checks the view can be generated.
func (v PerspectiveView) CheckValid() error {
	if v.Width <= 0 || v.Height <= 0 {
		return NewInvalidViewError(fmt.Sprintf("invalid size (%d, %d)", v.Width, v.Height))
	}
	if !(v.ScaleFactor > 0) || math.IsInf(v.ScaleFactor, 0) {
		return NewInvalidViewError(fmt.Sprintf("scale factor must be positive and finite, got %v", v.ScaleFactor))
	}
	return nil
}

// focalLength is the distance, in target pixels, from the camera center to the view plane.
func (v PerspectiveView) focalLength() float64 {
	return float64(v.Width) / v.ScaleFactor
}

// Intrinsics returns the pinhole intrinsics of the virtual camera that sees the view.
func (v PerspectiveView) Intrinsics() *PinholeCameraIntrinsics {
	f := v.focalLength()
	return &PinholeCameraIntrinsics{
		Width:  v.Width,
		Height: v.Height,
		Fx:     f,
		Fy:     f,
		Ppx:    float64(v.Width) / 2,
		Ppy:    float64(v.Height) / 2,
	}
}

// Ray returns the viewing ray, in the calibration's axes, through target pixel (x, y). The
// calibration's x axis runs along image rows. axisSign is the sign of the optical axis, which is
// the sign of Pol[0].
func (v PerspectiveView) Ray(x, y int, axisSign float64) r3.Vector {
	return r3.Vector{
		X: float64(y) - float64(v.Height)/2,
		Y: float64(x) - float64(v.Width)/2,
		Z: axisSign * v.focalLength(),
	}
}

// opticalAxisSign is +1 when the camera looks down +z and -1 when it looks down -z, which is the
// usual OCamCalib convention (Pol[0] < 0).
func opticalAxisSign(model *OmnidirectionalCameraModel) float64 {
	if model.Pol[0] < 0 {
		return -1
	}
	return 1
}

// BuildPerspectiveLUT computes, for every pixel of the perspective view, the distorted pixel that
// World2Cam assigns to its viewing ray. The target center maps to the calibrated image center.
// Source pixels off the sensor are kept as-is.
func BuildPerspectiveLUT(
	ctx context.Context,
	model *OmnidirectionalCameraModel,
	view PerspectiveView,
) (*UndistortionLUT, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return BuildPerspectiveLUTWithProjector(ctx, model, opticalAxisSign(model), view)
}

// BuildPerspectiveLUTWithProjector is BuildPerspectiveLUT for any projector. axisSign selects
// whether the view plane lies at +z or -z. Projectors with a CheckValid method are checked first.
func BuildPerspectiveLUTWithProjector(
	ctx context.Context,
	projector OmnidirectionalProjector,
	axisSign float64,
	view PerspectiveView,
) (*UndistortionLUT, error) {
	ctx, span := trace.StartSpan(ctx, "transform::BuildPerspectiveLUT")
	defer span.End()

	if projector == nil {
		return nil, errors.New("projector is nil")
	}
	if v, ok := projector.(interface{ CheckValid() error }); ok {
		if err := v.CheckValid(); err != nil {
			return nil, err
		}
	}
	if err := view.CheckValid(); err != nil {
		return nil, err
	}
	if axisSign != 1 && axisSign != -1 {
		return nil, NewInvalidViewError(fmt.Sprintf("axis sign must be 1 or -1, got %v", axisSign))
	}
	return buildLUT(ctx, view.Width, view.Height, func(x, y int) PixelPoint {
		return projector.World2Cam(view.Ray(x, y, axisSign))
	})
}

// PanoramicView describes a cartesian to polar unwrap of the ring between RMin and RMax around
// the image center. Columns sweep the full circle and rows sweep the radius. By default the
// angle grows counter-clockwise with the column and row 0 is the inner radius.
type PanoramicView struct {
	Width  int     `json:"width_px" yaml:"width_px"`
	Height int     `json:"height_px" yaml:"height_px"`
	RMin   float64 `json:"r_min" yaml:"r_min"`
	RMax   float64 `json:"r_max" yaml:"r_max"`
	// Clockwise negates the angle, mirroring the panorama horizontally.
	Clockwise bool `json:"clockwise" yaml:"clockwise"`
	// OuterRadiusFirst puts RMax on row 0, flipping the panorama vertically.
	OuterRadiusFirst bool `json:"outer_radius_first" yaml:"outer_radius_first"`
}

// CheckValid checks the view can be generated.
func (v PanoramicView) CheckValid() error {
	if v.Width <= 0 || v.Height <= 0 {
		return NewInvalidViewError(fmt.Sprintf("invalid size (%d, %d)", v.Width, v.Height))
	}
	if !utils.IsFinite(v.RMin) || !utils.IsFinite(v.RMax) || v.RMin < 0 || v.RMin >= v.RMax {
		return NewInvalidViewError(fmt.Sprintf("radii must satisfy 0 <= r_min < r_max, got r_min=%v r_max=%v", v.RMin, v.RMax))
	}
	return nil
}

// Source returns the distorted pixel unwrapped to target pixel (x, y) around center.
func (v PanoramicView) Source(x, y int, center PixelPoint) PixelPoint {
	theta := 2 * math.Pi * float64(x) / float64(v.Width)
	if v.Clockwise {
		theta = -theta
	}
	step := (v.RMax - v.RMin) / float64(v.Height)
	r := v.RMin + float64(y)*step
	if v.OuterRadiusFirst {
		r = v.RMax - float64(y)*step
	}
	return PixelPoint{
		Row: center.Row + r*math.Cos(theta),
		Col: center.Col + r*math.Sin(theta),
	}
}

// BuildPanoramicLUT unwraps the ring around the model's image center into a panorama. Only the
// center of the calibration is used.
func BuildPanoramicLUT(
	ctx context.Context,
	model *OmnidirectionalCameraModel,
	view PanoramicView,
) (*UndistortionLUT, error) {
	ctx, span := trace.StartSpan(ctx, "transform::BuildPanoramicLUT")
	defer span.End()

	if model == nil {
		return nil, NewInvalidCalibrationError("calibration does not exist")
	}
	if !utils.IsFinite(model.Xc) || !utils.IsFinite(model.Yc) {
		return nil, NewInvalidCalibrationError(fmt.Sprintf("invalid center (%v, %v)", model.Xc, model.Yc))
	}
	if err := view.CheckValid(); err != nil {
		return nil, err
	}
	center := model.Center()
	return buildLUT(ctx, view.Width, view.Height, func(x, y int) PixelPoint {
		return view.Source(x, y, center)
	})
}

// buildLUT fills a width x height LUT, splitting rows across utils.ParallelFactor workers. Each
// cell is written once, by the worker owning its row.
func buildLUT(ctx context.Context, width, height int, source func(x, y int) PixelPoint) (*UndistortionLUT, error) {
	lut := NewUndistortionLUT(width, height)
	err := utils.GroupWorkParallel(
		ctx,
		height,
		func(numGroups int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, y int) {
				for x := 0; x < width; x++ {
					lut.set(x, y, source(x, y))
				}
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return lut, nil
}
