package inp

import (
	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// CompositionDef is the project-file encoding of a thermo.Composition:
// either a single species name or an ordered mixture of named fractions.
// Grounded on inp.Material's Name/Model string-keyed lookup against a
// fixed backend registry (inp/mat.go ReadMat's switch on m.Type).
type CompositionDef struct {
	Pure    string        `json:"pure,omitempty"`
	Mixture []FractionDef `json:"mixture,omitempty"`
	ByMole  bool          `json:"by_mole,omitempty"`
}

// FractionDef names one species' share of a mixture composition.
type FractionDef struct {
	Species  string  `json:"species"`
	Fraction float64 `json:"fraction"`
}

var speciesByName = map[string]thermo.Species{
	"N2": thermo.N2, "O2": thermo.O2, "H2": thermo.H2, "CH4": thermo.CH4,
	"H2O": thermo.H2O, "CO2": thermo.CO2, "Ar": thermo.Ar,
}

func lookupSpecies(name string) (thermo.Species, error) {
	s, ok := speciesByName[name]
	if !ok {
		return 0, thermoerr.New(thermoerr.KindValidation, "LoadingProject", name, "unrecognized species %q", name)
	}
	return s, nil
}

// Build resolves this definition into an immutable thermo.Composition,
// failing validation if it names an unknown species or a mixture whose
// fractions do not sum to 1 within thermo.NewMixture's tolerance.
func (c CompositionDef) Build() (thermo.Composition, error) {
	if len(c.Mixture) == 0 {
		s, err := lookupSpecies(c.Pure)
		if err != nil {
			return thermo.Composition{}, err
		}
		return thermo.NewPure(s), nil
	}
	fracs := make([]thermo.Fraction, len(c.Mixture))
	for i, m := range c.Mixture {
		s, err := lookupSpecies(m.Species)
		if err != nil {
			return thermo.Composition{}, err
		}
		fracs[i] = thermo.Fraction{Species: s, Fraction: m.Fraction}
	}
	comp, err := thermo.NewMixture(fracs, c.ByMole)
	if err != nil {
		return thermo.Composition{}, thermoerr.Wrap(thermoerr.KindValidation, "LoadingProject", "", err)
	}
	return comp, nil
}
