package thermo

import (
	"fmt"

	"github.com/dpedroso/thermoflow/thermoerr"
)

// Backend is the external real-fluid equation-of-state collaborator
// (a CoolProp-equivalent library). Its internals are out of scope per
// spec §1 — thermoflow only describes this interface and consumes it.
// A backend instance may be globally stateful (singleton species
// tables); the core treats it as a shared read-only resource after
// initialization (spec §5).
type Backend interface {
	// Query evaluates a single-point state. OutOfRange and
	// internal-error failures must be distinguishable so RealFluid can
	// tag them correctly for the fallback policy.
	Query(pair InputPair, a, b float64, comp Composition) (BackendResult, error)

	// BatchQuery evaluates a PropertyPack in one backend instantiation,
	// satisfying the property-query cost discipline for backends that
	// otherwise require a stateful fluid object per evaluation. A
	// backend without a native batched call may return ErrNotBatched;
	// RealFluid then falls back to DefaultPropertyPack.
	BatchQuery(pair InputPair, a, b float64, comp Composition) (PropertyPack, error)
}

// BackendResult is the raw tuple a Backend.Query call returns.
type BackendResult struct {
	P, T, Rho, H, S, Cp, Cv, Mu, K float64
	Ph                             Phase
}

// ErrNotBatched is returned by a Backend.BatchQuery that has no native
// batched path; RealFluid.PropertyPack falls back to DefaultPropertyPack.
var ErrNotBatched = fmt.Errorf("backend does not support batched property queries")

// RealFluid is the FluidModel backed by an external EOS Backend. It
// implements the property-pack contract and the Phase-10 direct
// inversion, grounded on gofem/mdl/fluid.Model's Init/GetPrms shape but
// generalized from a single linear law to full real-fluid dispatch.
type RealFluid struct {
	backend Backend
	comp    Composition
	name    string

	// per-call cache: backends that instantiate a stateful fluid object
	// per (pair,a,b) must not be re-queried for data already fetched in
	// this evaluation round; RealFluid caches the single most recent
	// query result since snapshot evaluation is strictly sequential
	// (spec §5: single-threaded, no suspension points).
	lastPair InputPair
	lastA    float64
	lastB    float64
	lastRes  BackendResult
	haveLast bool
}

// NewRealFluid constructs a RealFluid model for a fixed composition.
func NewRealFluid(name string, backend Backend, comp Composition) *RealFluid {
	return &RealFluid{backend: backend, comp: comp, name: name}
}

func (o *RealFluid) Name() string             { return o.name }
func (o *RealFluid) Composition() Composition { return o.comp }

func (o *RealFluid) query(pair InputPair, a, b float64) (BackendResult, error) {
	if o.haveLast && o.lastPair == pair && o.lastA == a && o.lastB == b {
		return o.lastRes, nil
	}
	res, err := o.backend.Query(pair, a, b, o.comp)
	if err != nil {
		return BackendResult{}, err
	}
	o.lastPair, o.lastA, o.lastB, o.lastRes, o.haveLast = pair, a, b, res, true
	return res, nil
}

// State implements Model.
func (o *RealFluid) State(pair InputPair, a, b float64) (*State, error) {
	res, err := o.query(pair, a, b)
	if err != nil {
		return nil, thermoerr.Wrap(thermoerr.KindOutOfRange, "FluidQuery",
			fmt.Sprintf("%s(%.6g,%.6g)", pair, a, b), err)
	}
	return &State{
		P: res.P, T: res.T, Rho: res.Rho, H: res.H, S: res.S,
		Cp: res.Cp, Cv: res.Cv, Mu: res.Mu, K: res.K,
		Comp: o.comp, Ph: res.Ph,
	}, nil
}

// PropertyPack implements Model, preferring the backend's native batched
// call and falling back to DefaultPropertyPack otherwise.
func (o *RealFluid) PropertyPack(s *State) (*PropertyPack, error) {
	pack, err := o.backend.BatchQuery(PT, s.P, s.T, o.comp)
	if err == nil {
		return &pack, nil
	}
	if err != ErrNotBatched {
		return nil, thermoerr.Wrap(thermoerr.KindOutOfRange, "PropertyPack", "", err)
	}
	return DefaultPropertyPack(o, s)
}
