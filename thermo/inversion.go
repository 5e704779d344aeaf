package thermo

import (
	"fmt"
	"math"

	"github.com/dpedroso/thermoflow/thermoerr"
)

// InversionConfig tunes the Phase-10 bisection. Defaults match spec §4.A.
type InversionConfig struct {
	TLo, THi   float64 // broad bracket when no p_hint is available
	RelTol     float64 // relative tolerance on h(rho,T) = h_target
	MaxIters   int
	Expansions int // number of bracket-expansion rounds to attempt
}

// DefaultInversionConfig matches the spec's 100K..2000K bracket, 1e-8
// relative tolerance and 100-iteration cap.
func DefaultInversionConfig() InversionConfig {
	return InversionConfig{TLo: 100, THi: 2000, RelTol: 1e-8, MaxIters: 100, Expansions: 1}
}

// hOfT evaluates h(rho, T) by querying the model at fixed density, used
// as the scalar function the bisection drives to zero.
func hOfT(m Model, rho, t float64) (h float64, st *State, err error) {
	st, err = m.State(RhoT, rho, t)
	if err != nil {
		return 0, nil, err
	}
	return st.H, st, nil
}

// InvertRhoHDirect implements the Phase-10 algorithm: a single scalar
// bisection on temperature at fixed density replaces the naive nested
// outer-P/inner-T bisection (~50*100 evaluations) with ~100 at most.
//
//  1. Bracket T: seed from an (p_hint, h) query when p_hint > 0,
//     otherwise use the broad [TLo, THi] bracket with one expansion
//     round if both ends bracket h_target with the same sign.
//  2. Bisect T to satisfy h(rho, T) = h_target to RelTol or an absolute
//     bound, capped at MaxIters.
//  3. At convergence, extract P = p(rho, T_final) and return both P and
//     the full state so callers avoid a redundant validation query.
func InvertRhoHDirect(m Model, rho, h float64, comp Composition, pHint float64, cfg InversionConfig) (p float64, st *State, err error) {
	tLo, tHi := cfg.TLo, cfg.THi

	if pHint > 0 {
		seed, serr := m.State(PH, pHint, h)
		if serr == nil && seed.T > 0 {
			span := math.Max(10, 0.25*seed.T)
			tLo, tHi = seed.T-span, seed.T+span
		}
	}

	hLo, _, err := hOfT(m, rho, tLo)
	if err != nil {
		return 0, nil, outOfRange("PhaseTenInvert", "bracket-lo", "cannot establish low bracket: %v", err)
	}
	hHi, _, err := hOfT(m, rho, tHi)
	if err != nil {
		return 0, nil, outOfRange("PhaseTenInvert", "bracket-hi", "cannot establish high bracket: %v", err)
	}

	fLo, fHi := hLo-h, hHi-h
	expansions := cfg.Expansions
	for sameSign(fLo, fHi) && expansions > 0 {
		span := tHi - tLo
		tLo -= span
		tHi += span
		if tLo < 1 {
			tLo = 1
		}
		hLo, _, err = hOfT(m, rho, tLo)
		if err != nil {
			return 0, nil, outOfRange("PhaseTenInvert", "bracket-expand-lo", "%v", err)
		}
		hHi, _, err = hOfT(m, rho, tHi)
		if err != nil {
			return 0, nil, outOfRange("PhaseTenInvert", "bracket-expand-hi", "%v", err)
		}
		fLo, fHi = hLo-h, hHi-h
		expansions--
	}
	if sameSign(fLo, fHi) {
		return 0, nil, outOfRange("PhaseTenInvert", "bracket",
			"h_target=%.6g not bracketed in T in [%.6g,%.6g] at rho=%.6g", h, tLo, tHi, rho)
	}

	var mid float64
	var midState *State
	for i := 0; i < cfg.MaxIters; i++ {
		mid = 0.5 * (tLo + tHi)
		var fMid float64
		fMid, midState, err = hOfT(m, rho, mid)
		if err != nil {
			return 0, nil, outOfRange("PhaseTenInvert", "iterate", "%v", err)
		}
		fMid -= h

		relErr := math.Abs(fMid) / math.Max(1, math.Abs(h))
		if relErr <= cfg.RelTol || (tHi-tLo) < 1e-10 {
			p = midState.P
			return p, midState, nil
		}
		if sameSign(fMid, fLo) {
			tLo = mid
			fLo = fMid
		} else {
			tHi = mid
			fHi = fMid
		}
	}
	return 0, nil, iterationLimit("PhaseTenInvert", "bisection",
		"T-bisection at rho=%.6g, h=%.6g did not converge in %d iterations", rho, h, cfg.MaxIters)
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// PressureFromRhoHDirect implements thermo.DirectInverter for RealFluid
// using the shared Phase-10 bisection above.
func (o *RealFluid) PressureFromRhoHDirect(rho, h float64, comp Composition, pHint float64) (float64, *State, error) {
	p, st, err := InvertRhoHDirect(o, rho, h, comp, pHint, DefaultInversionConfig())
	if err != nil {
		if e, ok := err.(*thermoerr.Error); ok {
			e.Context = fmt.Sprintf("rho=%.6g h=%.6g", rho, h)
		}
		return 0, nil, err
	}
	return p, st, nil
}
