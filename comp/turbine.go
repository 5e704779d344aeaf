package comp

import (
	"github.com/dpedroso/thermoflow/thermo"
)

// Turbine is symmetric with Pump: isentropic expansion then an
// efficiency adjustment that sets exit h above the isentropic value by
// (1-eta)*(h_in - h_is) (spec §4.C).
type Turbine struct {
	InletID, OutletID NodeID
	POut              float64 // Pa, commanded exit pressure
	Efficiency        float64 // isentropic efficiency, 0 < eta <= 1
	CommandedMdot     float64 // kg/s, control input
}

func (t *Turbine) Kind() string                 { return "turbine" }
func (t *Turbine) Ports() (inlet, outlet NodeID) { return t.InletID, t.OutletID }

func (t *Turbine) Mdot(model thermo.Model, inlet, outlet PortState) (float64, error) {
	return t.CommandedMdot, nil
}

// ExitEnthalpy computes the isentropic expansion to POut, then raises
// exit h above h_is by (1-eta)*(h_in-h_is), so exit enthalpy never falls
// below the isentropic value.
func (t *Turbine) ExitEnthalpy(model thermo.Model, inlet PortState, mdot float64) (float64, error) {
	inState, err := model.State(thermo.PH, inlet.P, inlet.H)
	if err != nil {
		return 0, err
	}
	isenState, err := model.State(thermo.PS, t.POut, inState.S)
	if err != nil {
		return 0, err
	}
	eta := t.Efficiency
	if eta <= 0 {
		eta = 1
	}
	hOut := isenState.H + (1-eta)*(inlet.H-isenState.H)
	return hOut, nil
}
