package comp

import (
	"github.com/dpedroso/thermoflow/thermo"
)

// Pump implements isentropic head from (P_in,h_in) to P_out corrected by
// a polytropic efficiency eta: h_out = h_in + (h_is - h_in)/eta
// (spec §4.C). Mdot is a free input (control/schedule driven) rather
// than a pressure-law output, so Mdot here simply returns the commanded
// flow; the component's defining contribution is ExitEnthalpy.
type Pump struct {
	InletID, OutletID NodeID
	POut              float64 // Pa, commanded discharge pressure
	Efficiency        float64 // polytropic efficiency, 0 < eta <= 1
	CommandedMdot     float64 // kg/s, control input
}

func (p *Pump) Kind() string                 { return "pump" }
func (p *Pump) Ports() (inlet, outlet NodeID) { return p.InletID, p.OutletID }

func (p *Pump) Mdot(model thermo.Model, inlet, outlet PortState) (float64, error) {
	return p.CommandedMdot, nil
}

// ExitEnthalpy implements WorkExtracting: compute the isentropic exit
// state at P_out (same entropy as inlet), then apply the efficiency
// correction.
func (p *Pump) ExitEnthalpy(model thermo.Model, inlet PortState, mdot float64) (float64, error) {
	inState, err := model.State(thermo.PH, inlet.P, inlet.H)
	if err != nil {
		return 0, err
	}
	isenState, err := model.State(thermo.PS, p.POut, inState.S)
	if err != nil {
		return 0, err
	}
	eta := p.Efficiency
	if eta <= 0 {
		eta = 1
	}
	hOut := inlet.H + (isenState.H-inlet.H)/eta
	return hOut, nil
}
