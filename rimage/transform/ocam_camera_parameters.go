package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/ocam/utils"
)

// ErrInvalidCalibration is when an omnidirectional calibration cannot be used for projection.
var ErrInvalidCalibration = errors.New("invalid omnidirectional calibration")

// NewInvalidCalibrationError is used when a field of the calibration breaks its invariants.
func NewInvalidCalibrationError(msg string) error {
	return errors.Wrap(ErrInvalidCalibration, msg)
}

// OmnidirectionalCameraModel holds the OCamCalib parameters of a single-center fisheye or
// catadioptric camera. Pol maps a sensor radius to the z component of the viewing ray and
// InvPol maps the elevation angle of a ray back to a sensor radius. Both are in ascending order
// (Pol[0] is the constant term). The center (Xc, Yc) is in (row, column) order, 0-based.
// The affine matrix [[C, D], [E, 1]] maps ideal sensor offsets to pixel offsets.
type OmnidirectionalCameraModel struct {
	Pol    []float64 `json:"pol" yaml:"pol"`
	InvPol []float64 `json:"invpol" yaml:"invpol"`
	Xc     float64   `json:"xc" yaml:"xc"`
	Yc     float64   `json:"yc" yaml:"yc"`
	C      float64   `json:"c" yaml:"c"`
	D      float64   `json:"d" yaml:"d"`
	E      float64   `json:"e" yaml:"e"`
	Width  int       `json:"width_px" yaml:"width_px"`
	Height int       `json:"height_px" yaml:"height_px"`
}

// NewOmnidirectionalCameraModel copies the given coefficients into a new model and validates it.
func NewOmnidirectionalCameraModel(
	pol, invPol []float64,
	xc, yc, c, d, e float64,
	width, height int,
) (*OmnidirectionalCameraModel, error) {
	model := &OmnidirectionalCameraModel{
		Pol:    append([]float64(nil), pol...),
		InvPol: append([]float64(nil), invPol...),
		Xc:     xc,
		Yc:     yc,
		C:      c,
		D:      d,
		E:      e,
		Width:  width,
		Height: height,
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

// CheckValid checks that the model can be used by World2Cam, Cam2World and the LUT builders.
func (m *OmnidirectionalCameraModel) CheckValid() error {
	if m == nil {
		return NewInvalidCalibrationError("calibration does not exist")
	}
	if len(m.Pol) == 0 {
		return NewInvalidCalibrationError("empty direct polynomial (pol)")
	}
	if len(m.InvPol) == 0 {
		return NewInvalidCalibrationError("empty inverse polynomial (invpol)")
	}
	for i, v := range m.Pol {
		if !utils.IsFinite(v) {
			return NewInvalidCalibrationError(fmt.Sprintf("pol[%d] = %v is not finite", i, v))
		}
	}
	for i, v := range m.InvPol {
		if !utils.IsFinite(v) {
			return NewInvalidCalibrationError(fmt.Sprintf("invpol[%d] = %v is not finite", i, v))
		}
	}
	if !utils.IsFinite(m.Xc) || !utils.IsFinite(m.Yc) {
		return NewInvalidCalibrationError(fmt.Sprintf("invalid center (%v, %v)", m.Xc, m.Yc))
	}
	if !utils.IsFinite(m.C) || !utils.IsFinite(m.D) || !utils.IsFinite(m.E) {
		return NewInvalidCalibrationError(fmt.Sprintf("invalid affine parameters c=%v d=%v e=%v", m.C, m.D, m.E))
	}
	if m.AffineDeterminant() == 0 {
		return NewInvalidCalibrationError(fmt.Sprintf("singular affine matrix c=%v d=%v e=%v", m.C, m.D, m.E))
	}
	if m.Width < 0 || m.Height < 0 {
		return NewInvalidCalibrationError(fmt.Sprintf("invalid size (%d, %d)", m.Width, m.Height))
	}
	return nil
}

// AffineDeterminant returns det([[C, D], [E, 1]]).
func (m *OmnidirectionalCameraModel) AffineDeterminant() float64 {
	return m.C - m.D*m.E
}

// Degree is the degree of the direct polynomial.
func (m *OmnidirectionalCameraModel) Degree() int {
	return len(m.Pol) - 1
}

// InverseDegree is the degree of the inverse polynomial.
func (m *OmnidirectionalCameraModel) InverseDegree() int {
	return len(m.InvPol) - 1
}

// Center returns the optical center as a pixel.
func (m *OmnidirectionalCameraModel) Center() PixelPoint {
	return PixelPoint{Row: m.Xc, Col: m.Yc}
}

// Radius is the distance from the image center to a corner of the sensor. It bounds the
// radii searched when fitting the inverse polynomial.
func (m *OmnidirectionalCameraModel) Radius() float64 {
	return math.Hypot(float64(m.Width)/2, float64(m.Height)/2)
}

// InBounds reports whether a pixel lies on the calibrated sensor.
func (m *OmnidirectionalCameraModel) InBounds(p PixelPoint) bool {
	return p.Row >= 0 && p.Col >= 0 && p.Row < float64(m.Height) && p.Col < float64(m.Width)
}

// PixelPoint is a sub-pixel location in the camera's own pixel convention: 0-based, row first.
type PixelPoint struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// Point converts the pixel to image space, where X is the column and Y is the row.
func (p PixelPoint) Point() r2.Point {
	return r2.Point{X: p.Col, Y: p.Row}
}

// PixelPointFromPoint converts an image space point back to a PixelPoint.
func PixelPointFromPoint(pt r2.Point) PixelPoint {
	return PixelPoint{Row: pt.Y, Col: pt.X}
}
