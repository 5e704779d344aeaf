package thermo

import (
	"math"

	"github.com/dpedroso/thermoflow/thermoerr"
)

// Model is the FluidModel contract (spec §4.A). Implementations query a
// real-fluid equation-of-state backend, or — for the surrogate-only test
// double — a cheap closed-form law. Per the design notes on
// polymorphism, two variants must exist: a real-fluid backend and a
// surrogate-only backend for testing; both satisfy this interface.
type Model interface {
	// Name identifies the backend for diagnostic summaries.
	Name() string

	// Composition returns the fixed composition this model instance was
	// built for.
	Composition() Composition

	// State queries the backend at the given input pair, returning a
	// kind-tagged *thermoerr.Error distinguishing out-of-range from
	// backend-internal failures.
	State(pair InputPair, a, b float64) (*State, error)

	// PropertyPack returns a batch of seven properties from one backend
	// instantiation. The DefaultPropertyPack helper in this package is a
	// valid fallback implementation; a real backend should override this
	// method to batch internally instead of calling State repeatedly.
	PropertyPack(s *State) (*PropertyPack, error)
}

// DirectInverter is an optional fast path: given (rho, h), find P and a
// full state without the nested bisection. Absent on a Model, callers
// fall back to the legacy nested scheme (see cv package).
type DirectInverter interface {
	// PressureFromRhoHDirect implements the Phase-10 algorithm: a single
	// scalar bisection on temperature at fixed density, replacing the
	// naive outer-P/inner-T nested bisection.
	PressureFromRhoHDirect(rho, h float64, comp Composition, pHint float64) (p float64, st *State, err error)
}

// DefaultPropertyPack builds a PropertyPack from the fields of the given,
// already-computed State, with gamma = Cp/Cv (1 when Cv is zero) and an
// ideal-gas speed of sound; it makes no further State queries. It is the
// fallback every Model gets for free; a real backend
// should override PropertyPack with a single batched instantiation per
// the property-query cost discipline (spec §4.A).
func DefaultPropertyPack(m Model, s *State) (*PropertyPack, error) {
	gamma := 1.0
	if s.Cv != 0 {
		gamma = s.Cp / s.Cv
	}
	a := speedOfSoundIdeal(gamma, s)
	return &PropertyPack{
		P: s.P, T: s.T, Rho: s.Rho, H: s.H, Cp: s.Cp, Gamma: gamma, A: a,
	}, nil
}

// speedOfSoundIdeal estimates a = sqrt(gamma * P / rho) when a backend
// does not supply speed of sound directly; real backends should prefer
// their own EOS-consistent value.
func speedOfSoundIdeal(gamma float64, s *State) float64 {
	if s.Rho <= 0 {
		return 0
	}
	v := gamma * s.P / s.Rho
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// outOfRange builds a tagged out-of-range error for a rejected query.
func outOfRange(stage, context, format string, args ...interface{}) error {
	return thermoerr.New(thermoerr.KindOutOfRange, stage, context, format, args...)
}

// iterationLimit builds a tagged iteration-limit error.
func iterationLimit(stage, context, format string, args ...interface{}) error {
	return thermoerr.New(thermoerr.KindIterationLimit, stage, context, format, args...)
}
