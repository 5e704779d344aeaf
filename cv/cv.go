// Package cv implements the control-volume (M,U)->(ρ,h,P) dynamics (spec
// §4.F): instantaneous property recovery from stored mass/energy,
// pressure inversion via the fluid model's direct path when available
// (falling back to nested bisection otherwise), the per-CV boundary
// cache, and the dM/dt, dU/dt derivative accounting shared with
// LineVolume segments. Grounded on gofem/mdl/por/states.go's pattern of
// deriving secondary state variables (Sl, Sg, ...) from primary storage
// variables on demand rather than caching them as independent fields.
package cv

import (
	"math"

	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// State is a CV's instantaneous recovered state: ρ, h from storage, and
// P from inversion.
type State struct {
	Rho, H, P float64
}

// BoundaryCache holds the last accepted (ρ,h,P,h_boundary) tuple for one
// CV, per spec §4.F "CV boundary cache".
type BoundaryCache struct {
	RhoPrev, HPrev, PPrev, HBoundaryPrev float64
	Populated                            bool
}

// Cache owns one BoundaryCache per CV node, plus one per LineVolume
// component (a disjoint key space, since net.NodeID and net.CompID both
// index from zero in their own arenas), plus the shared relative
// tolerance, per design notes §9 ("configurable field, not a package
// constant").
type Cache struct {
	RelTol float64
	byNode map[net.NodeID]*BoundaryCache
	byComp map[net.CompID]*BoundaryCache
}

// NewCache returns a Cache at the spec default 0.5% tolerance.
func NewCache() *Cache {
	return &Cache{RelTol: 0.005, byNode: make(map[net.NodeID]*BoundaryCache), byComp: make(map[net.CompID]*BoundaryCache)}
}

func (c *Cache) entry(id net.NodeID) *BoundaryCache {
	e, ok := c.byNode[id]
	if !ok {
		e = &BoundaryCache{}
		c.byNode[id] = e
	}
	return e
}

func (c *Cache) compEntry(id net.CompID) *BoundaryCache {
	e, ok := c.byComp[id]
	if !ok {
		e = &BoundaryCache{}
		c.byComp[id] = e
	}
	return e
}

// deviation returns max(|Δρ/ρ_prev|, |Δh/h_prev|).
func deviation(rho, h, rhoPrev, hPrev float64) float64 {
	dr := 0.0
	if rhoPrev != 0 {
		dr = math.Abs((rho - rhoPrev) / rhoPrev)
	}
	dh := 0.0
	if hPrev != 0 {
		dh = math.Abs((h - hPrev) / hPrev)
	}
	if dr > dh {
		return dr
	}
	return dh
}

// RhoH recovers (ρ,h) from stored (M,U,V). U is carried as the total
// enthalpy content M*h, so h = U/M; it is not the thermodynamic
// internal energy.
func RhoH(mass, energy, vol float64) (rho, h float64, err error) {
	if vol <= 0 {
		return 0, 0, thermoerr.New(thermoerr.KindContractViolation, "RhoH", "", "control volume has non-positive volume %.6g", vol)
	}
	if mass <= 0 {
		return 0, 0, thermoerr.New(thermoerr.KindValidation, "RhoH", "", "control volume mass %.6g is non-positive", mass)
	}
	return mass / vol, energy / mass, nil
}

// Boundary resolves a CV's (ρ,h)->P state, reusing the cached tuple when
// the new (ρ,h) has moved by no more than Cache.RelTol since the last
// solve (spec §4.F "CV boundary cache"), and otherwise performing a
// fresh pressure_from_rho_h recovery: the fluid model's direct path
// (thermo.DirectInverter) when available, else a nested bisection on P
// (bisect P; at each trial P evaluate state(P,h) and compare density to
// target) for models that expose only input-pair queries.
func (c *Cache) Boundary(node net.NodeID, model thermo.Model, rho, h float64, comp thermo.Composition, pHint float64, invCfg thermo.InversionConfig) (State, error) {
	return resolveBoundary(c.entry(node), c.RelTol, model, rho, h, comp, pHint, invCfg)
}

// BoundaryComponent is Boundary's LineVolume analogue: the same cached
// (ρ,h)->P recovery, keyed by the segment's own CompID rather than a
// node, since a LineVolume carries internal storage without being a
// network node in its own right (spec §4.C).
func (c *Cache) BoundaryComponent(id net.CompID, model thermo.Model, rho, h float64, comp thermo.Composition, pHint float64, invCfg thermo.InversionConfig) (State, error) {
	return resolveBoundary(c.compEntry(id), c.RelTol, model, rho, h, comp, pHint, invCfg)
}

func resolveBoundary(e *BoundaryCache, relTol float64, model thermo.Model, rho, h float64, comp thermo.Composition, pHint float64, invCfg thermo.InversionConfig) (State, error) {
	if e.Populated {
		if deviation(rho, h, e.RhoPrev, e.HPrev) <= relTol {
			return State{Rho: rho, H: h, P: e.PPrev}, nil
		}
	}

	var p float64
	var err error
	if di, ok := model.(thermo.DirectInverter); ok {
		p, _, err = di.PressureFromRhoHDirect(rho, h, comp, pHint)
	} else {
		p, err = nestedBisectPressure(model, rho, h, pHint, invCfg)
	}
	if err != nil {
		return State{}, err
	}

	e.RhoPrev, e.HPrev, e.PPrev, e.HBoundaryPrev = rho, h, p, h
	e.Populated = true
	return State{Rho: rho, H: h, P: p}, nil
}

// nestedBisectPressure is the legacy fallback (spec §4.F): bisect P,
// evaluating state(P,h) at each trial and comparing the resulting
// density to the target, for fluid models that do not implement
// DirectInverter.
func nestedBisectPressure(model thermo.Model, rhoTarget, h, pHint float64, cfg thermo.InversionConfig) (float64, error) {
	lo, hi := pHint*0.5, pHint*1.5
	if pHint <= 0 {
		lo, hi = 1000, 20_000_000
	}
	f := func(p float64) (float64, error) {
		st, err := model.State(thermo.PH, p, h)
		if err != nil {
			return 0, err
		}
		return st.Rho - rhoTarget, nil
	}
	flo, err := f(lo)
	if err != nil {
		return 0, err
	}
	fhi, err := f(hi)
	if err != nil {
		return 0, err
	}
	expansions := 0
	for flo*fhi > 0 && expansions < 20 {
		lo *= 0.5
		hi *= 1.5
		flo, err = f(lo)
		if err != nil {
			return 0, err
		}
		fhi, err = f(hi)
		if err != nil {
			return 0, err
		}
		expansions++
	}
	if flo*fhi > 0 {
		return 0, thermoerr.New(thermoerr.KindOutOfRange, "nestedBisectPressure", "", "no sign change bracketing rho=%.6g at h=%.6g", rhoTarget, h)
	}

	for it := 0; it < cfg.MaxIters; it++ {
		mid := 0.5 * (lo + hi)
		fmid, err := f(mid)
		if err != nil {
			return 0, err
		}
		if fmid == 0 || (hi-lo)/mid < cfg.RelTol {
			return mid, nil
		}
		if sameSignCV(flo, fmid) {
			lo, flo = mid, fmid
		} else {
			hi = mid
		}
	}
	return 0, thermoerr.New(thermoerr.KindIterationLimit, "nestedBisectPressure", "", "pressure bisection failed to converge within %d iterations", cfg.MaxIters)
}

func sameSignCV(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// Derivatives returns dM/dt, dU/dt for a CV given its aggregated
// in/out mass flows and port enthalpies plus external heat loss
// (spec §4.F "Derivatives").
func Derivatives(mdotIn, hIn, mdotOut, hOut, qExt float64) (dMdt, dUdt float64) {
	dMdt = mdotIn - mdotOut
	dUdt = mdotIn*hIn - mdotOut*hOut - qExt
	return
}
