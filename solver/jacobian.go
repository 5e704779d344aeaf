package solver

import (
	"math"

	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/num"

	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/residual"
)

// evalFunc evaluates the residual vector at x, the shape every Jacobian
// column (and the outer Newton loop) perturbs and calls repeatedly.
type evalFunc func(x []float64) (*residual.Result, error)

// fdStep returns the forward-difference perturbation for component i of
// x, a per-variable relative step floored at FDAbsFloor so a zero
// unknown still gets a usable step (spec §4.E "Jacobian").
func fdStep(xi float64, cfg Config) float64 {
	step := cfg.FDRelStep * math.Abs(xi)
	if step < cfg.FDAbsFloor {
		step = cfg.FDAbsFloor
	}
	return step
}

// assembleJacobian builds the dense n x n Jacobian dR/dx by forward
// differences, one residual.Evaluate call per column. Dense storage is
// appropriate here (unlike the teacher's sparse FEM Jacobian): thermo-
// fluid networks carry at most a few hundred free unknowns, so a dense
// gosl/la.Matrix inverted directly is both simpler and fast enough,
// without requiring an external sparse-factorization backend.
func assembleJacobian(x []float64, r0 []float64, eval evalFunc, cfg Config) (*la.Matrix, error) {
	n := len(x)
	J := la.NewMatrix(n, n)
	xp := make([]float64, n)
	copy(xp, x)
	for j := 0; j < n; j++ {
		h := fdStep(x[j], cfg)
		xp[j] = x[j] + h
		res, err := eval(xp)
		xp[j] = x[j]
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			J.Set(i, j, (res.R[i]-r0[i])/h)
		}
	}
	return J, nil
}

// solveLinear solves J*dx = -R0 via dense Gauss-Jordan inversion
// (la.MatInv), grounded on gofem's use of gosl/la for small dense
// auxiliary systems (ana package) rather than the teacher's sparse
// Triplet+external-factorization path, which targets mesh-scale FEM
// systems far larger than a lumped-network Jacobian.
func solveLinear(J *la.Matrix, r0 []float64) ([]float64, error) {
	n := len(r0)
	inv := la.NewMatrix(n, n)
	_, err := la.MatInv(inv, J, 1e-13)
	if err != nil {
		return nil, err
	}
	dx := make([]float64, n)
	neg := make([]float64, n)
	for i := range r0 {
		neg[i] = -r0[i]
	}
	la.MatVecMul(dx, 1, inv, neg)
	return dx, nil
}

// CheckColumn cross-checks column col of an already-assembled Jacobian
// against num.DerivCentral's independent central-difference estimate of
// the same column, returning the two side by side for a caller to
// compare (spec §4.E "Jacobian" sanity check). Grounded on the
// teacher's own num.DerivCentral-vs-analytic-derivative comparison in
// shp/testing.go, here checking one FD Jacobian against a second,
// higher-order FD estimate rather than an analytic one, since this
// domain has no closed-form derivative to compare against.
func CheckColumn(eval evalFunc, x []float64, col int, h float64) ([]float64, error) {
	base := make([]float64, len(x))
	copy(base, x)
	var evalErr error
	n := len(x)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		row := i
		d, _ := num.DerivCentral(func(t float64, args ...interface{}) (v float64) {
			xp := make([]float64, n)
			copy(xp, base)
			xp[col] = t
			res, err := eval(xp)
			if err != nil {
				evalErr = err
				return 0
			}
			return res.R[row]
		}, base[col], h)
		out[i] = d
	}
	return out, evalErr
}

// rowScale returns the convergence-tolerance scaling appropriate to an
// unknown's kind: mass-residual rows (pressure unknowns) and
// energy-residual rows (enthalpy unknowns) have different natural
// magnitudes and must not share one absolute tolerance.
func rowScale(u residual.Unknown, n *net.Network, cfg Config) float64 {
	if u.IsEnth {
		return cfg.AbsTolEnergy
	}
	return cfg.AbsTolMass
}
