package comp

import (
	"math"

	"github.com/dpedroso/thermoflow/thermo"
)

// lineVolumeLosslessCd, lineVolumeLosslessArea regularize a lossless
// LineVolume's flow law the same way valveMinAreaFraction regularizes a
// fully-closed valve: a "lossless buffer" (Cd*Area == 0) must still
// pass flow essentially unimpeded rather than block it outright, so
// Mdot applies the orifice law at this large effective opening instead
// of returning a hard zero that would leave the segment's own (M,U)
// unable to evolve.
const (
	lineVolumeLosslessCd   = 0.9
	lineVolumeLosslessArea = 1e-2 // m2
)

// LineVolume is a finite-volume line segment: it has internal volume and
// therefore stores mass and energy (dM/dt, dU/dt integrated alongside CV
// nodes), with an optional resistance term (Cd, Area) producing the flow
// law. When Cd*Area == 0 it behaves as a lossless buffer (spec §4.C):
// nearly unrestricted flow, but still its own (M,U) storage.
type LineVolume struct {
	InletID, OutletID NodeID
	Vol               float64 // m3
	Cd                float64
	Area              float64 // m2; 0 => lossless buffer
}

func (lv *LineVolume) Kind() string                 { return "linevolume" }
func (lv *LineVolume) Ports() (inlet, outlet NodeID) { return lv.InletID, lv.OutletID }
func (lv *LineVolume) Volume() float64               { return lv.Vol }

// effectiveOrifice returns the Orifice this segment's resistance term
// reduces to: the configured (Cd, Area) normally, or a large regularized
// area when lossless, so through-flow is essentially unimpeded instead
// of hard-zeroed.
func (lv *LineVolume) effectiveOrifice() *Orifice {
	cd, area := lv.Cd, lv.Area
	if cd*area == 0 {
		cd, area = lineVolumeLosslessCd, lineVolumeLosslessArea
	}
	return &Orifice{InletID: lv.InletID, OutletID: lv.OutletID, Cd: cd, Area: area}
}

// Mdot applies the orifice law at the configured (Cd, Area), or at the
// lossless-buffer regularized area when Cd*Area == 0, per spec §4.C.
func (lv *LineVolume) Mdot(model thermo.Model, inlet, outlet PortState) (float64, error) {
	return lv.effectiveOrifice().Mdot(model, inlet, outlet)
}

// IsLossless reports whether this segment has zero resistance.
func (lv *LineVolume) IsLossless() bool { return lv.Cd*lv.Area == 0 }

// Derivatives computes dM/dt and dU/dt for this segment's own storage
// from the same mass/energy-flow accounting the CV layer uses (spec
// §4.F "Derivatives"), given the net inlet/outlet mass flow and port
// enthalpies plus any external heat loss Qext.
func Derivatives(mdotIn, hIn, mdotOut, hOut, qExt float64) (dMdt, dUdt float64) {
	dMdt = mdotIn - mdotOut
	dUdt = mdotIn*hIn - mdotOut*hOut - qExt
	return
}

// RhoH recovers (rho, h) from (M, U, V) under the same convention as
// cv.RhoH: U is carried as the total enthalpy content M*h, so h = U/M.
func RhoH(mass, energy, vol float64) (rho, h float64) {
	if vol <= 0 || mass <= 0 {
		return 0, 0
	}
	rho = mass / vol
	h = energy / mass
	return
}

// MassIdentityResidual returns the gap between the reconstructed mass
// rho(state)*V and the integrated M, per the data-model invariant that
// this must hold within solver tolerance at every converged snapshot.
func MassIdentityResidual(rhoState, mass, vol float64) float64 {
	return math.Abs(rhoState*vol - mass)
}
