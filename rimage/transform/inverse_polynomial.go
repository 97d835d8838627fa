package transform

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	invPolThetaMin  = -math.Pi / 2
	invPolThetaMax  = 1.20
	invPolThetaStep = 0.01
)

// FitInversePolynomial computes the coefficients (ascending) of a polynomial of the given degree
// approximating the inverse of pol: for an elevation angle theta it returns the sensor radius
// rho such that atan2(pol(rho), rho) = theta. Angles are sampled over [-pi/2, 1.2]; samples
// without a unique root in (0, radius) are skipped. The coefficients are the least squares fit
// of the remaining samples.
func FitInversePolynomial(pol []float64, radius float64, degree int) ([]float64, error) {
	if err := checkInvertible(pol, radius); err != nil {
		return nil, err
	}
	if degree < 1 {
		return nil, errors.Errorf("invalid inverse polynomial degree %d", degree)
	}

	var thetas, rhos []float64
	shifted := append([]float64(nil), pol...)
	for theta := invPolThetaMin; theta <= invPolThetaMax+1e-12; theta += invPolThetaStep {
		// pol(rho) = tan(theta) * rho
		shifted[1] = pol[1] - math.Tan(theta)
		roots, err := polynomialRoots(shifted)
		if err != nil {
			return nil, err
		}
		rho, ok := uniqueRootInRange(roots, radius)
		if !ok {
			continue
		}
		thetas = append(thetas, theta)
		rhos = append(rhos, rho)
	}
	if len(thetas) <= degree {
		return nil, errors.Errorf("only %d usable samples to fit a degree %d inverse polynomial", len(thetas), degree)
	}

	vandermonde := mat.NewDense(len(thetas), degree+1, nil)
	for i, theta := range thetas {
		acc := 1.0
		for j := 0; j <= degree; j++ {
			vandermonde.Set(i, j, acc)
			acc *= theta
		}
	}
	var coeffs mat.Dense
	if err := coeffs.Solve(vandermonde, mat.NewVecDense(len(rhos), rhos)); err != nil {
		return nil, errors.Wrap(err, "error fitting inverse polynomial")
	}
	return mat.Col(nil, 0, &coeffs), nil
}

// InverseFitError returns the largest absolute radius error, in pixels, of invPol against pol
// over the sampled angles that have a root in (0, radius).
func InverseFitError(pol, invPol []float64, radius float64) (float64, error) {
	if err := checkInvertible(pol, radius); err != nil {
		return 0, err
	}
	var worst float64
	shifted := append([]float64(nil), pol...)
	for theta := invPolThetaMin; theta <= invPolThetaMax+1e-12; theta += invPolThetaStep {
		shifted[1] = pol[1] - math.Tan(theta)
		roots, err := polynomialRoots(shifted)
		if err != nil {
			return 0, err
		}
		rho, ok := uniqueRootInRange(roots, radius)
		if !ok {
			continue
		}
		worst = math.Max(worst, math.Abs(polyval(invPol, theta)-rho))
	}
	return worst, nil
}

// checkInvertible reports whether pol can be sampled against tan(theta) over (0, radius).
func checkInvertible(pol []float64, radius float64) error {
	if len(pol) < 2 {
		return errors.New("direct polynomial needs at least 2 coefficients to be inverted")
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return errors.Errorf("invalid radius %v", radius)
	}
	return nil
}

// polynomialRoots returns the complex roots of the polynomial with ascending coefficients, as
// the eigenvalues of its companion matrix.
func polynomialRoots(coeffs []float64) ([]complex128, error) {
	n := len(coeffs) - 1
	for n > 0 && coeffs[n] == 0 {
		n--
	}
	if n < 1 {
		return nil, nil
	}
	lead := coeffs[n]
	companion := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		companion.Set(0, j, -coeffs[n-1-j]/lead)
	}
	for i := 1; i < n; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return nil, errors.New("eigen decomposition of companion matrix failed")
	}
	return eig.Values(nil), nil
}

func uniqueRootInRange(roots []complex128, radius float64) (float64, bool) {
	var found []float64
	for _, root := range roots {
		re := real(root)
		if math.Abs(imag(root)) > 1e-9*math.Max(1, cmplx.Abs(root)) {
			continue
		}
		if re > 0 && re < radius {
			found = append(found, re)
		}
	}
	if len(found) != 1 {
		return 0, false
	}
	return found[0], true
}
