package comp

import (
	"math"

	"github.com/dpedroso/thermoflow/thermo"
)

// Orifice implements compressible flow with a choked-flow cap, per spec
// §4.C: mdot = Cd*A*rho_up*sqrt(2*|dP|/rho_up), capped when the pressure
// ratio crosses the critical value gamma/(gamma+1)^(gamma/(gamma-1)).
type Orifice struct {
	InletID, OutletID NodeID
	Cd                float64
	Area              float64 // m2
}

func (o *Orifice) Kind() string                      { return "orifice" }
func (o *Orifice) Ports() (inlet, outlet NodeID)      { return o.InletID, o.OutletID }

// Mdot queries a single property pack on the upstream state to obtain
// (rho, gamma, a), per the Phase-11 batching contract, then applies the
// orifice law with a choked-flow cap.
func (o *Orifice) Mdot(model thermo.Model, inlet, outlet PortState) (float64, error) {
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
	pack, err := model.PropertyPack(upState)
	if err != nil {
		return 0, err
	}

	dnP := outlet.P
	if sign < 0 {
		dnP = inlet.P
	}

	mdot := chokedOrificeFlow(o.Cd, o.Area, pack.Rho, dp, pack.Gamma, upP, dnP)
	return sign * mdot, nil
}

// chokedOrificeFlow applies the isentropic choked-flow cap: when the
// downstream/upstream pressure ratio falls below the critical ratio
// gamma/(gamma+1)^(gamma/(gamma-1)), flow is evaluated at the critical
// ratio instead of the actual one.
func chokedOrificeFlow(cd, area, rhoUp, dp, gamma, upP, dnP float64) float64 {
	if rhoUp <= 0 || area <= 0 {
		return 0
	}
	ratio := dnP / upP
	critRatio := gamma / math.Pow(gamma+1, gamma/(gamma-1))
	if ratio < critRatio {
		dp = upP * (1 - critRatio)
	}
	return cd * area * math.Sqrt(2*math.Abs(dp)*rhoUp)
}
