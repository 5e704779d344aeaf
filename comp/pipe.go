package comp

import (
	"math"

	"github.com/dpedroso/thermoflow/thermo"
)

// Pipe implements Darcy-Weisbach flow with a fixed friction factor f,
// length L and hydraulic diameter D; mdot follows from the quadratic
// relation between dP and velocity head using upstream density
// (spec §4.C).
type Pipe struct {
	InletID, OutletID NodeID
	Friction          float64 // f, dimensionless
	Length            float64 // m
	Diameter          float64 // m, hydraulic diameter
}

func (p *Pipe) Kind() string                 { return "pipe" }
func (p *Pipe) Ports() (inlet, outlet NodeID) { return p.InletID, p.OutletID }

// Mdot solves dP = f*(L/D)*(rho*v^2/2) for the velocity head and
// converts to mass flow via mdot = rho*v*Area, Area = pi/4*D^2.
func (p *Pipe) Mdot(model thermo.Model, inlet, outlet PortState) (float64, error) {
	dp := inlet.P - outlet.P
	if dp == 0 {
		return 0, nil
	}
	upP, upH := inlet.P, inlet.H
	sign := 1.0
	if dp < 0 {
		upP, upH = outlet.P, outlet.H
		sign = -1.0
		dp = -dp
	}

	upState, err := model.State(thermo.PH, upP, upH)
	if err != nil {
		return 0, err
	}
	if upState.Rho <= 0 || p.Diameter <= 0 || p.Friction <= 0 {
		return 0, nil
	}

	area := math.Pi / 4 * p.Diameter * p.Diameter
	// dp = f*(L/D)*(rho*v^2/2)  =>  v = sqrt(2*dp*D / (f*L*rho))
	v := math.Sqrt(2 * dp * p.Diameter / (p.Friction * p.Length * upState.Rho))
	mdot := upState.Rho * v * area
	return sign * mdot, nil
}
