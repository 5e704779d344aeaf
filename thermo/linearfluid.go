package thermo

import (
	"math"

	"github.com/cpmech/gosl/fun"
)

// LinearFluid is the surrogate-only FluidModel variant the design notes
// call for when testing the solver/integrator without a real EOS
// backend. It is adapted from gofem/mdl/fluid.Model's linear
// compressibility law R(p) = R0 + C*(p-p0), generalized from a single
// column-density law to a full (P,T,rho,h) closed-form ideal-gas-like
// surrogate so it can stand in for Model/DirectInverter in tests.
//
//	rho(P,T) = P / (Rspecific * T)            ideal-gas law
//	h(T)     = href + Cp * (T - Tref)         calorically perfect gas
type LinearFluid struct {
	Comp0    Composition
	Cp       float64 // J/(kg*K), frozen specific heat
	Tref, Href float64
	Rspecific  float64 // J/(kg*K) == R_universal / molar mass
}

// NewLinearFluid builds a LinearFluid surrogate for the given
// composition, deriving Rspecific from the ideal-gas relation.
func NewLinearFluid(comp Composition, cp, tref, href float64) *LinearFluid {
	const Runiv = 8.314462618 // J/(mol*K)
	mw := comp.MolarMass()
	r := Runiv / mw
	return &LinearFluid{Comp0: comp, Cp: cp, Tref: tref, Href: href, Rspecific: r}
}

// Init mirrors gofem's Model.Init(prms fun.Prms, ...) shape: parameters
// are supplied as name-value pairs rather than positional arguments.
func (o *LinearFluid) Init(prms fun.Prms) {
	for _, p := range prms {
		switch p.N {
		case "Cp":
			o.Cp = p.V
		case "Tref":
			o.Tref = p.V
		case "Href":
			o.Href = p.V
		case "Rspecific":
			o.Rspecific = p.V
		}
	}
}

// GetPrms mirrors gofem's Model.GetPrms(example bool) accessor.
func (o LinearFluid) GetPrms(example bool) fun.Prms {
	if example {
		return fun.Prms{ // dry-air-like defaults
			&fun.P{N: "Cp", V: 1005},
			&fun.P{N: "Tref", V: 300},
			&fun.P{N: "Href", V: 300000},
			&fun.P{N: "Rspecific", V: 287},
		}
	}
	return fun.Prms{
		&fun.P{N: "Cp", V: o.Cp},
		&fun.P{N: "Tref", V: o.Tref},
		&fun.P{N: "Href", V: o.Href},
		&fun.P{N: "Rspecific", V: o.Rspecific},
	}
}

func (o *LinearFluid) Name() string             { return "linear-surrogate" }
func (o *LinearFluid) Composition() Composition { return o.Comp0 }

func (o *LinearFluid) hFromT(t float64) float64 { return o.Href + o.Cp*(t-o.Tref) }
func (o *LinearFluid) tFromH(h float64) float64 { return o.Tref + (h-o.Href)/o.Cp }

// State implements Model for each input pair in closed form.
func (o *LinearFluid) State(pair InputPair, a, b float64) (*State, error) {
	var p, t, rho, h float64
	switch pair {
	case PT:
		p, t = a, b
		h = o.hFromT(t)
		rho = p / (o.Rspecific * t)
	case PH:
		p, h = a, b
		t = o.tFromH(h)
		rho = p / (o.Rspecific * t)
	case TH:
		t, h = a, b
		_ = h
		p = 0 // underdetermined without rho/P; surrogate treats as reference pressure 0
	case RhoT:
		rho, t = a, b
		h = o.hFromT(t)
		p = rho * o.Rspecific * t
	case PS:
		return nil, outOfRange("LinearFluid", "PS", "entropy-based queries unsupported by linear surrogate")
	}
	cv := o.Cp - o.Rspecific
	return &State{
		P: p, T: t, Rho: rho, H: h, S: 0, Cp: o.Cp, Cv: cv,
		Mu: 1.8e-5, K: 0.026, Comp: o.Comp0, Ph: PhaseVapor,
	}, nil
}

// PropertyPack uses the shared default since this closed-form model has
// no per-instantiation backend cost to batch away.
func (o *LinearFluid) PropertyPack(s *State) (*PropertyPack, error) {
	return DefaultPropertyPack(o, s)
}

// PressureFromRhoHDirect implements DirectInverter in closed form:
// T = Tref + (h-Href)/Cp directly, then P = rho*Rspecific*T — no
// bisection is needed for an ideal-gas law, but the method still proves
// out the DirectInverter contract for callers exercising the fast path.
func (o *LinearFluid) PressureFromRhoHDirect(rho, h float64, comp Composition, pHint float64) (float64, *State, error) {
	t := o.tFromH(h)
	if t <= 0 || math.IsNaN(t) {
		return 0, nil, outOfRange("LinearFluid", "direct-invert", "non-physical T=%.6g for h=%.6g", t, h)
	}
	p := rho * o.Rspecific * t
	st, err := o.State(RhoT, rho, t)
	if err != nil {
		return 0, nil, err
	}
	return p, st, nil
}
