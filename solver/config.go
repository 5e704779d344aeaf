// Package solver implements the steady-state Newton-Raphson solve (spec
// §4.E): finite-difference Jacobian assembly, backtracking line search
// guarded by the state-creation policy, and the largest-residual
// convergence check. Grounded line-for-line on the iteration shape of
// gofem/fem.run_iterations (assemble residual -> check convergence ->
// assemble Jacobian -> factor/solve -> update -> recheck), translated
// from per-element AddToRhs/AddToKb assembly over a FEM mesh to
// per-component residual.Evaluate calls over a thermo-fluid network.
package solver

// Config holds the Newton loop's tunables, mirroring the
// largFb/largFb0/FbTol/FbMin/NmaxIt shape of the teacher's solver
// settings (gofem inp.SolverData) adapted to this domain's two
// unknown kinds (pressure, enthalpy) with independent scaling.
type Config struct {
	MaxIters     int     // NmaxIt equivalent
	AbsTolMass   float64 // ε_abs for mass residual rows [kg/s]
	AbsTolEnergy float64 // ε_abs for energy residual rows [W]
	RelTol       float64 // FbTol equivalent: converge when ‖R‖∞ < AbsTol + RelTol*‖R0‖∞
	FDRelStep    float64 // relative step for forward-difference Jacobian columns
	FDAbsFloor   float64 // SI floor for the FD step, avoids a zero step at x==0
	LineSearchBeta      float64 // step-halving factor, β
	LineSearchMaxTrials int     // cap on backtracking trials per iteration

	// MaxOuterIters bounds the outer loop that holds every Junction's
	// lagged enthalpy fixed while the inner Newton loop converges
	// pressures (and CV enthalpies) against it, then refreshes the lag
	// from the converged flow and repeats until the lag itself stops
	// moving (spec §4.E.2, §3 "Junction enthalpy... updated between
	// outer iterations").
	MaxOuterIters     int
	JunctionLagRelTol float64 // outer convergence: max relative change in any junction's lagged enthalpy
}

// DefaultConfig mirrors typical gofem solver defaults (FbTol~1e-5,
// NmaxIt~20) scaled to this domain's SI residual units.
func DefaultConfig() Config {
	return Config{
		MaxIters:            40,
		AbsTolMass:           1e-9,
		AbsTolEnergy:         1e-6,
		RelTol:               1e-8,
		FDRelStep:            1e-6,
		FDAbsFloor:           1e-8,
		LineSearchBeta:       0.4,
		LineSearchMaxTrials:  40,
		MaxOuterIters:        10,
		JunctionLagRelTol:    1e-6,
	}
}
