// Package comp implements the constitutive mass-flow laws for each
// two-port component kind (spec §4.C): Orifice, Valve, Pipe, Pump,
// Turbine and LineVolume. Grounded on the closed-variant Element
// interface in gofem/ele/element.go (Id(), generic accessors, a known
// set of concrete kinds iterated without a hot-loop type switch),
// translated from mesh-wide degrees of freedom to two-port flow laws.
package comp

import (
	"github.com/dpedroso/thermoflow/thermo"
)

// NodeID mirrors policy.NodeID; kept as a local alias so comp has no
// import-cycle dependency on the net package, which owns node storage.
type NodeID int

// PortState is the minimal state a component's mdot law needs from each
// of its two ports.
type PortState struct {
	P, H, Rho float64
}

// Component is the two-port interface every constitutive law satisfies.
// The set is closed and known at build time (design notes §9).
type Component interface {
	Kind() string
	Ports() (inlet, outlet NodeID)

	// Mdot computes signed mass flow, positive inlet->outlet, per the
	// component's own sign convention (spec §3 invariants).
	Mdot(model thermo.Model, inlet, outlet PortState) (float64, error)
}

// WorkExtracting is implemented by components that also set an exit
// enthalpy (Pump, Turbine): spec §4.C requires these never produce exit
// enthalpies below local EOS validity, which the solver's validator
// checks via the state-creation policy.
type WorkExtracting interface {
	Component
	ExitEnthalpy(model thermo.Model, inlet PortState, mdot float64) (float64, error)
}

// Storing is implemented by components that also carry internal volume
// and therefore integrate their own (M,U) alongside CV nodes
// (LineVolume).
type Storing interface {
	Component
	Volume() float64
}
