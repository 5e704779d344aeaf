// Package thermo implements real-fluid equation-of-state queries,
// batched property packs and the direct ρ,h→T→P inversion (Phase 10)
// described in the fluid-model specification. It is grounded on the
// parameter/model shape of github.com/cpmech/gofem/mdl/fluid, generalized
// from a single linear-compressibility law to a FluidModel interface with
// a real-fluid backend and a surrogate-only test double.
package thermo

import (
	"math"

	"github.com/cpmech/gosl/chk"
)

// Species enumerates the fixed set of common pure fluids thermoflow
// supports, per the data model.
type Species int

const (
	N2 Species = iota
	O2
	H2
	CH4
	H2O
	CO2
	Ar
)

func (s Species) String() string {
	switch s {
	case N2:
		return "N2"
	case O2:
		return "O2"
	case H2:
		return "H2"
	case CH4:
		return "CH4"
	case H2O:
		return "H2O"
	case CO2:
		return "CO2"
	case Ar:
		return "Ar"
	default:
		return "unknown"
	}
}

// molarMassTable holds molar mass [kg/mol] per species, used by the
// ideal-gas R_specific computations of the surrogate (policy package)
// and of LinearFluid.
var molarMassTable = map[Species]float64{
	N2:  0.0280134,
	O2:  0.0319988,
	H2:  0.00201594,
	CH4: 0.0160426,
	H2O: 0.0180153,
	CO2: 0.0440098,
	Ar:  0.039948,
}

// criticalPoint holds (Tc, Pc) used only to seed brackets; never a
// substitute for a real EOS evaluation.
type criticalPoint struct {
	Tc float64 // K
	Pc float64 // Pa
}

var criticalTable = map[Species]criticalPoint{
	N2:  {Tc: 126.19, Pc: 3.3958e6},
	O2:  {Tc: 154.58, Pc: 5.043e6},
	H2:  {Tc: 33.145, Pc: 1.2964e6},
	CH4: {Tc: 190.56, Pc: 4.599e6},
	H2O: {Tc: 647.096, Pc: 22.064e6},
	CO2: {Tc: 304.13, Pc: 7.3773e6},
	Ar:  {Tc: 150.69, Pc: 4.863e6},
}

// Fraction pairs a species with its mole or mass fraction in a mixture.
type Fraction struct {
	Species  Species
	Fraction float64
}

// Composition is either a pure species or an ordered mixture. It is
// immutable once constructed and shared across all property queries for
// a run, per the data model.
type Composition struct {
	pure     Species
	isPure   bool
	mixture  []Fraction
	byMole   bool // true: Fraction is mole fraction; false: mass fraction
}

// NewPure returns a single-species composition.
func NewPure(s Species) Composition {
	return Composition{pure: s, isPure: true}
}

// NewMixture validates that fractions sum to 1 within 1e-6 (a contract
// violation otherwise — this invariant must never be silently repaired)
// and returns an immutable mixture composition.
func NewMixture(fracs []Fraction, byMole bool) (Composition, error) {
	var sum float64
	for _, f := range fracs {
		sum += f.Fraction
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return Composition{}, chk.Err("composition fractions sum to %.9f, not 1 within 1e-6", sum)
	}
	cp := make([]Fraction, len(fracs))
	copy(cp, fracs)
	return Composition{mixture: cp, byMole: byMole}, nil
}

// IsPure reports whether this is a single-species composition.
func (c Composition) IsPure() bool { return c.isPure }

// Pure returns the pure species; only valid when IsPure().
func (c Composition) Pure() Species { return c.pure }

// Mixture returns the ordered fraction list; only valid when !IsPure().
func (c Composition) Mixture() []Fraction { return c.mixture }

// MolarMass returns the (possibly mixture-averaged) molar mass [kg/mol].
// Mixing is mole-fraction weighted; mass-fraction mixtures are converted
// first. Multi-component flash beyond this bulk average is out of scope
// per the design notes' open question on mixture property recovery.
func (c Composition) MolarMass() float64 {
	if c.IsPure() {
		return molarMassTable[c.pure]
	}
	if c.byMole {
		var mw float64
		for _, f := range c.mixture {
			mw += f.Fraction * molarMassTable[f.Species]
		}
		return mw
	}
	// mass-fraction mixture: 1/MW_mix = sum(w_i / MW_i)
	var invMW float64
	for _, f := range c.mixture {
		invMW += f.Fraction / molarMassTable[f.Species]
	}
	if invMW == 0 {
		return 0
	}
	return 1 / invMW
}

// SumFractionsOK checks the sum-to-1 invariant at query time, for states
// whose composition provenance is less certain (e.g. loaded externally).
func (c Composition) SumFractionsOK() bool {
	if c.IsPure() {
		return true
	}
	var sum float64
	for _, f := range c.mixture {
		sum += f.Fraction
	}
	return math.Abs(sum-1.0) <= 1e-6
}

// criticalBracketSeed returns a (Tc, Pc)-derived guess for seeding a
// temperature bracket; mixture critical properties are
// mole-fraction-weighted (Kay's rule), a coarse approximation adequate
// for a bracket seed only. InvertRhoHDirect does not call it: its
// bracket comes from pHint or from InversionConfig.
func (c Composition) criticalBracketSeed() criticalPoint {
	if c.IsPure() {
		return criticalTable[c.pure]
	}
	var tc, pc float64
	for _, f := range c.mixture {
		w := f.Fraction
		cp := criticalTable[f.Species]
		tc += w * cp.Tc
		pc += w * cp.Pc
	}
	return criticalPoint{Tc: tc, Pc: pc}
}
