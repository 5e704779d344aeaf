package comp

import (
	"github.com/dpedroso/thermoflow/thermo"
)

// Valve is an orifice with position-dependent area. A minimum effective
// area of 1e-4*AreaMax enforces non-singular conductance at closure,
// avoiding Jacobian blowup at t=0 (spec §4.C).
type Valve struct {
	InletID, OutletID NodeID
	Cd                float64
	AreaMax           float64 // m2, area at position == 1
	Position          float64 // 0..1
}

const valveMinAreaFraction = 1e-4

func (v *Valve) Kind() string                 { return "valve" }
func (v *Valve) Ports() (inlet, outlet NodeID) { return v.InletID, v.OutletID }

// EffectiveArea returns the valve's conductance area at its current
// position, floored at 1e-4*AreaMax.
func (v *Valve) EffectiveArea() float64 {
	pos := v.Position
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	area := pos * v.AreaMax
	minArea := valveMinAreaFraction * v.AreaMax
	if area < minArea {
		return minArea
	}
	return area
}

// Mdot delegates to the shared orifice law with the position-scaled
// effective area.
func (v *Valve) Mdot(model thermo.Model, inlet, outlet PortState) (float64, error) {
	o := &Orifice{InletID: v.InletID, OutletID: v.OutletID, Cd: v.Cd, Area: v.EffectiveArea()}
	return o.Mdot(model, inlet, outlet)
}
