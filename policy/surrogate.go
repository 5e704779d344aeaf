package policy

import (
	"math"

	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// FrozenPropertySurrogate is a local linear approximation of fluid
// properties at one node: a reference state plus a frozen cp and an
// approximate molar mass, used only when the real-fluid backend rejects
// a query (spec §4.B, glossary entry "Surrogate").
type FrozenPropertySurrogate struct {
	Pref, Tref, Href, Rhoref float64
	CpFrozen                 float64
	MolarMass                float64 // kg/mol, for the ideal-gas R_specific below
}

// Rspecific returns R_specific = R_universal / MolarMass used in the
// linear T-estimate relation.
func (s FrozenPropertySurrogate) Rspecific() float64 {
	const Runiv = 8.314462618
	if s.MolarMass == 0 {
		return 0
	}
	return Runiv / s.MolarMass
}

// ClampWindow bounds the linear T-estimate to a safe validity band. The
// [200K, 500K] default is a policy knob tuned for nitrogen near
// atmospheric conditions, not a universal constant (design notes open
// question), so it lives on SurrogateBacked rather than as a package
// constant.
type ClampWindow struct {
	TLo, THi float64
}

// DefaultClampWindow returns the nitrogen-tuned [200K, 500K] band.
func DefaultClampWindow() ClampWindow { return ClampWindow{TLo: 200, THi: 500} }

// SurrogateBacked is the transient-use ThermoStatePolicy variant: it
// maintains one FrozenPropertySurrogate per node and falls back to it
// when the real-fluid model rejects a (P,h) query.
type SurrogateBacked struct {
	Model           thermo.Model
	Clamp           ClampWindow
	RefreshRelDelta float64 // population/refresh threshold; spec default 0.05 (5%)

	surrogates map[NodeID]*FrozenPropertySurrogate
	stats      Stats
}

// NewSurrogateBacked constructs a transient-use policy with the spec's
// default 5% refresh threshold and the nitrogen-tuned clamp window.
func NewSurrogateBacked(m thermo.Model) *SurrogateBacked {
	return &SurrogateBacked{
		Model:           m,
		Clamp:           DefaultClampWindow(),
		RefreshRelDelta: 0.05,
		surrogates:      make(map[NodeID]*FrozenPropertySurrogate),
	}
}

// SeedSurrogate installs (or overwrites) node's surrogate from a
// converged state, as the integrator does immediately after the
// warm-start snapshot converges (spec §4.B "Surrogate population").
func (o *SurrogateBacked) SeedSurrogate(node NodeID, st *thermo.State, cpFrozen, molarMass float64) {
	o.surrogates[node] = &FrozenPropertySurrogate{
		Pref: st.P, Tref: st.T, Href: st.H, Rhoref: st.Rho,
		CpFrozen: cpFrozen, MolarMass: molarMass,
	}
	o.stats.SurrogatePopulated++
}

// RefreshIfNeeded updates node's surrogate from the latest converged
// (P,h) only when it has moved by more than RefreshRelDelta since the
// surrogate's last anchor in either coordinate — the expensive step
// Phase 5 throttled (spec §4.B, §4.G).
func (o *SurrogateBacked) RefreshIfNeeded(node NodeID, st *thermo.State, cpFrozen, molarMass float64) {
	cur, ok := o.surrogates[node]
	if !ok {
		o.SeedSurrogate(node, st, cpFrozen, molarMass)
		return
	}
	if deviationPct(cur.Pref, cur.Href, st.P, st.H) > o.RefreshRelDelta {
		o.SeedSurrogate(node, st, cpFrozen, molarMass)
	}
}

// CreateState implements Policy: try real-fluid first, opportunistically
// refresh the surrogate on a successful hit that has drifted, then fall
// back to the linear estimate when the real-fluid call fails and a
// surrogate exists.
func (o *SurrogateBacked) CreateState(node NodeID, p, h float64) (Result, error) {
	o.stats.RealFluidAttempts++
	st, err := o.Model.State(thermo.PH, p, h)
	if err == nil {
		o.stats.RealFluidSuccesses++
		if cur, ok := o.surrogates[node]; ok && deviationPct(cur.Pref, cur.Href, p, h) > o.RefreshRelDelta {
			o.SeedSurrogate(node, st, cur.CpFrozen, cur.MolarMass)
		}
		return Result{State: st, Origin: OriginRealFluid}, nil
	}

	sur, ok := o.surrogates[node]
	if !ok {
		return Result{}, thermoerr.Wrap(thermoerr.KindOutOfRange, "CreateState",
			"no surrogate available", err)
	}

	tEst := sur.Tref + (h-sur.Href)/sur.CpFrozen
	tEst = clamp(tEst, o.Clamp.TLo, o.Clamp.THi)

	fallbackState, ferr := o.Model.State(thermo.PT, p, tEst)
	if ferr != nil {
		return Result{}, thermoerr.Wrap(thermoerr.KindOutOfRange, "CreateState",
			"clamped fallback T also rejected", ferr)
	}
	o.stats.FallbackActivations++
	return Result{State: fallbackState, Origin: OriginFallback}, nil
}

func (o *SurrogateBacked) Snapshot() Stats { return o.stats }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
