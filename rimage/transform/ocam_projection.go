package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/ocam/utils"
)

// OmnidirectionalProjector converts between viewing rays and distorted image pixels.
type OmnidirectionalProjector interface {
	// World2Cam projects a ray, not necessarily normalized, onto the distorted image.
	World2Cam(ray r3.Vector) PixelPoint
	// Cam2World back-projects a pixel onto the unit sphere.
	Cam2World(p PixelPoint) r3.Vector
}

// World2Cam projects a 3D ray onto the image using the inverse polynomial, without iteration.
// A ray along the optical axis, including the zero vector, lands exactly on the image center.
// It panics with an ErrInvalidCalibration error when InvPol is empty.
func (m *OmnidirectionalCameraModel) World2Cam(ray r3.Vector) PixelPoint {
	if len(m.InvPol) == 0 {
		panic(NewInvalidCalibrationError("world2cam needs a non-empty inverse polynomial (invpol)"))
	}
	norm := math.Hypot(ray.X, ray.Y)
	if norm == 0 {
		return m.Center()
	}
	theta := math.Atan2(ray.Z, norm)
	rho := polyval(m.InvPol, theta)

	u := ray.X / norm * rho
	v := ray.Y / norm * rho
	return PixelPoint{
		Row: u*m.C + v*m.D + m.Xc,
		Col: u*m.E + v + m.Yc,
	}
}

// Cam2World back-projects a pixel to a unit ray using the direct polynomial. The image center
// maps to (0, 0, sign(Pol[0])). It panics with an ErrInvalidCalibration error when Pol is empty
// or the affine matrix is singular or not finite.
func (m *OmnidirectionalCameraModel) Cam2World(p PixelPoint) r3.Vector {
	if len(m.Pol) == 0 {
		panic(NewInvalidCalibrationError("cam2world needs a non-empty direct polynomial (pol)"))
	}
	det := m.AffineDeterminant()
	if det == 0 || !utils.IsFinite(det) {
		panic(NewInvalidCalibrationError(fmt.Sprintf("cam2world needs an invertible affine matrix, got det=%v", det)))
	}
	invDet := 1 / det
	dRow := p.Row - m.Xc
	dCol := p.Col - m.Yc
	u := invDet * (dRow - m.D*dCol)
	v := invDet * (-m.E*dRow + m.C*dCol)

	rho := math.Hypot(u, v)
	z := polyval(m.Pol, rho)

	norm := math.Sqrt(u*u + v*v + z*z)
	if norm == 0 {
		return r3.Vector{Z: 1}
	}
	return r3.Vector{X: u / norm, Y: v / norm, Z: z / norm}
}

// polyval evaluates the polynomial with ascending coefficients at x using Horner's method.
func polyval(coeffs []float64, x float64) float64 {
	var acc float64
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc*x + coeffs[i]
	}
	return acc
}
