package solver

import (
	"math"

	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/residual"
	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// IterLog records one Newton iteration's diagnostics, mirroring the
// teacher's "t it largFb Lδu" trace line (gofem fem.run_iterations). It
// does not record whether the residual came from a mass or an energy
// row, although this domain mixes both in one vector.
type IterLog struct {
	Iter      int
	LargestR  float64
	LargestDX float64
}

// Result is a converged (or failed) steady solve.
type Result struct {
	X        []float64
	Mdots    map[net.CompID]float64
	Iters    int
	Log      []IterLog
	Converged bool
}

// largestAbs mirrors gofem's la.VecLargest(v, scale): the largest
// absolute component of v, scaled.
func largestAbs(v []float64, scale float64) float64 {
	m := 0.0
	for _, vi := range v {
		a := math.Abs(vi) * scale
		if a > m {
			m = a
		}
	}
	return m
}

// converged checks ‖R‖∞ against the per-row absolute tolerance plus a
// relative fraction of the first iteration's residual, per row kind
// (mass vs energy rows do not share one scale).
func converged(R []float64, plan *residual.Plan, n *net.Network, r0norm float64, cfg Config) bool {
	for i, u := range plan.Unknowns {
		tol := rowScale(u, n, cfg) + cfg.RelTol*r0norm
		if math.Abs(R[i]) > tol {
			return false
		}
	}
	return true
}

// SolveSteady runs the outer junction-lag loop around the inner
// Newton-Raphson loop to convergence from x0, per spec §4.E: the inner
// loop assembles R(x), checks convergence, assembles the FD Jacobian,
// solves for the update, backtracks if the trial iterate is rejected by
// the state-creation policy or increases the residual, and applies it —
// all with every Junction's lagged enthalpy held fixed. Once the inner
// loop converges, the outer loop refreshes the lag from the converged
// flow (residual.RefreshJunctionLag) and repeats from the current x
// until the lag itself stops moving (spec §4.E.2, §3 "Junction enthalpy
// ... updated between outer iterations"), so a single inner iterate
// never sees a lag value different from the one its neighbors saw.
// Zero free unknowns short-circuits to a direct "solved" result with an
// empty vector, matching a fully-determined boundary-only network (spec
// §4.E "Degenerate cases").
func SolveSteady(n *net.Network, plan *residual.Plan, model thermo.Model, pol policy.Policy, ctx *residual.Context, x0 []float64, cfg Config) (*Result, error) {
	if plan.NDim() == 0 {
		res, err := residual.Evaluate(n, plan, nil, model, pol, ctx)
		if err != nil {
			return nil, err
		}
		return &Result{X: nil, Mdots: res.Mdots, Iters: 0, Converged: true}, nil
	}

	x := make([]float64, len(x0))
	copy(x, x0)

	eval := func(xx []float64) (*residual.Result, error) {
		return residual.Evaluate(n, plan, xx, model, pol, ctx)
	}

	var log []IterLog
	var totalIters int

	for outer := 0; outer < cfg.MaxOuterIters; outer++ {
		var r0norm float64
		var lastRes *residual.Result
		innerConverged := false

		for it := 0; it < cfg.MaxIters; it++ {
			res, err := eval(x)
			if err != nil {
				return nil, thermoerr.Wrap(thermoerr.KindIterationLimit, "SolveSteady", "residual", err)
			}
			lastRes = res
			R := res.R
			normR := largestAbs(R, 1)
			if it == 0 {
				r0norm = normR
			}
			totalIters++
			if converged(R, plan, n, r0norm, cfg) {
				innerConverged = true
				break
			}

			J, err := assembleJacobian(x, R, eval, cfg)
			if err != nil {
				return nil, err
			}
			dx, err := solveLinear(J, R)
			if err != nil {
				return nil, thermoerr.Wrap(thermoerr.KindSingularJacobian, "SolveSteady", "", err)
			}

			xNext, _, _, err := backtrack(x, dx, normR, eval, cfg)
			if err != nil {
				return nil, err
			}
			log = append(log, IterLog{Iter: totalIters - 1, LargestR: normR, LargestDX: largestAbs(dx, 1)})
			x = xNext
		}

		if !innerConverged {
			return &Result{X: x, Iters: totalIters, Converged: false, Log: log},
				thermoerr.New(thermoerr.KindIterationLimit, "SolveSteady", "", "Newton loop failed to converge within %d iterations", cfg.MaxIters)
		}

		prevLag := cloneLag(ctx.LaggedEnthalpy)
		residual.RefreshJunctionLag(n, ctx, lastRes)
		if lagConverged(prevLag, ctx.LaggedEnthalpy, cfg.JunctionLagRelTol) {
			return &Result{X: x, Mdots: lastRes.Mdots, Iters: totalIters, Log: log, Converged: true}, nil
		}
	}

	return &Result{X: x, Iters: totalIters, Converged: false, Log: log},
		thermoerr.New(thermoerr.KindIterationLimit, "SolveSteady", "", "junction-lag loop failed to converge within %d outer iterations", cfg.MaxOuterIters)
}

// cloneLag copies a lagged-enthalpy map so the outer loop can measure
// how far RefreshJunctionLag moved it.
func cloneLag(m map[net.NodeID]float64) map[net.NodeID]float64 {
	out := make(map[net.NodeID]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// lagConverged reports whether every junction's lagged enthalpy moved
// by no more than relTol (relative to its previous value) between two
// outer iterations.
func lagConverged(prev, next map[net.NodeID]float64, relTol float64) bool {
	for id, v := range next {
		p, ok := prev[id]
		if !ok {
			return false
		}
		if p == 0 {
			if v != 0 {
				return false
			}
			continue
		}
		if math.Abs((v-p)/p) > relTol {
			return false
		}
	}
	return true
}

// backtrack applies a damped Newton step: starting from a full step,
// halve by LineSearchBeta (up to LineSearchMaxTrials times) until the
// state-creation policy accepts every node's trial state and the
// residual norm does not increase, per spec §4.E "Line search".
func backtrack(x, dx []float64, curNorm float64, eval func([]float64) (*residual.Result, error), cfg Config) ([]float64, *residual.Result, float64, error) {
	alpha := 1.0
	xt := make([]float64, len(x))
	var lastErr error
	for trial := 0; trial < cfg.LineSearchMaxTrials; trial++ {
		for i := range x {
			xt[i] = x[i] + alpha*dx[i]
		}
		res, err := eval(xt)
		if err == nil {
			n := largestAbs(res.R, 1)
			if n <= curNorm || trial == cfg.LineSearchMaxTrials-1 {
				return xt, res, n, nil
			}
		} else {
			lastErr = err
		}
		alpha *= cfg.LineSearchBeta
	}
	if lastErr != nil {
		return nil, nil, 0, thermoerr.Wrap(thermoerr.KindContractViolation, "backtrack", "", lastErr)
	}
	return xt, nil, curNorm, nil
}
