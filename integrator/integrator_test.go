package integrator

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/cv"
	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/thermo"
)

func n2Fluid() *thermo.LinearFluid {
	return thermo.NewLinearFluid(thermo.NewPure(thermo.N2), 1039, 300, 300000)
}

// ventNetwork builds a single pressurized CV venting to atmosphere
// through an orifice, the simplest transient scenario spec §8 names.
func ventNetwork(tst *testing.T) (*net.Network, net.NodeID) {
	tst.Helper()
	n := net.New()
	cvID := n.AddControlVolume("tank", 0.05)
	atm := n.AddAtmosphere("atm", 100000, 300)
	if _, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cvID), OutletID: comp.NodeID(atm), Cd: 0.6, Area: 2e-5}); err != nil {
		tst.Errorf("AddComponent: %v\n", err)
	}
	return n, cvID
}

// ventNetworkWithLineVolume is ventNetwork with a LineVolume segment
// spliced between the tank and atmosphere, so the integrator must
// advance both the CV's and the segment's own (M,U).
func ventNetworkWithLineVolume(tst *testing.T) (*net.Network, net.NodeID, net.CompID) {
	tst.Helper()
	n := net.New()
	cvID := n.AddControlVolume("tank", 0.05)
	mid := n.AddJunction("mid")
	atm := n.AddAtmosphere("atm", 100000, 300)
	if _, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cvID), OutletID: comp.NodeID(mid), Cd: 0.6, Area: 2e-5}); err != nil {
		tst.Errorf("AddComponent: %v\n", err)
	}
	lineID, err := n.AddComponent(&comp.LineVolume{InletID: comp.NodeID(mid), OutletID: comp.NodeID(atm), Vol: 0.002, Cd: 0.6, Area: 2e-5})
	if err != nil {
		tst.Errorf("AddComponent: %v\n", err)
	}
	return n, cvID, lineID
}

func TestStepDrainsTankMassTowardAtmosphere(tst *testing.T) {
	n, cvID := ventNetwork(tst)
	model := n2Fluid()
	pol := &policy.Strict{Model: model}
	cache := cv.NewCache()
	vols := Volumes{cvID: 0.05}

	rho0, h0 := 4.0, 300000.0 // above atmospheric density, vents outward
	state := State{cvID: Storage{M: rho0 * vols[cvID], U: rho0 * vols[cvID] * h0}}

	cfg := DefaultConfig()
	res, err := Step(n, model, pol, cache, vols, state, nil, 0.01, nil, nil, 0, 0, 1, cfg)
	if err != nil {
		tst.Errorf("Step: %v\n", err)
		return
	}
	if res.State[cvID].M >= state[cvID].M {
		tst.Errorf("expected tank mass to decrease venting to atmosphere, got %.6g -> %.6g\n", state[cvID].M, res.State[cvID].M)
	}
}

func TestStepEulerAndRK4AgreeToFirstOrder(tst *testing.T) {
	n, cvID := ventNetwork(tst)
	model := n2Fluid()
	pol := &policy.Strict{Model: model}
	vols := Volumes{cvID: 0.05}
	rho0, h0 := 4.0, 300000.0
	state := State{cvID: Storage{M: rho0 * vols[cvID], U: rho0 * vols[cvID] * h0}}

	rk4Cfg := DefaultConfig()
	rk4Cfg.Method = RK4
	eulerCfg := DefaultConfig()
	eulerCfg.Method = Euler

	rk4Res, err := Step(n, model, pol, cv.NewCache(), vols, state, nil, 0.001, nil, nil, 0, 0, 1, rk4Cfg)
	if err != nil {
		tst.Errorf("rk4 Step: %v\n", err)
		return
	}
	eulerRes, err := Step(n, model, pol, cv.NewCache(), vols, state, nil, 0.001, nil, nil, 0, 0, 1, eulerCfg)
	if err != nil {
		tst.Errorf("euler Step: %v\n", err)
		return
	}
	chk.AnaNum(tst, "tank mass", 1e-6, rk4Res.State[cvID].M, eulerRes.State[cvID].M, chk.Verbose)
}

func TestStepReportsProgressPerSubstepOnCutback(tst *testing.T) {
	n, cvID := ventNetwork(tst)
	model := n2Fluid()
	pol := &policy.Strict{Model: model}
	vols := Volumes{cvID: 0.05}
	rho0, h0 := 4.0, 300000.0
	state := State{cvID: Storage{M: rho0 * vols[cvID], U: rho0 * vols[cvID] * h0}}

	var lastFraction float64
	count := 0
	onProgress := func(p Progress) {
		count++
		lastFraction = p.FractionComplete
	}

	cfg := DefaultConfig()
	res, err := Step(n, model, pol, cv.NewCache(), vols, state, nil, 0.5, nil, onProgress, 3, 0, 1, cfg)
	if err != nil {
		tst.Errorf("Step: %v\n", err)
		return
	}
	if count == 0 {
		tst.Errorf("expected at least one progress callback\n")
	}
	if lastFraction < 0.49 || lastFraction > 0.51 {
		tst.Errorf("expected final fraction near 0.5 (dt/total), got %.6g\n", lastFraction)
	}
	chk.IntAssert(res.Progress.StepIndex, 3)
}

func TestStepAdvancesLineVolumeStorageAlongsideCV(tst *testing.T) {
	n, cvID, lineID := ventNetworkWithLineVolume(tst)
	model := n2Fluid()
	pol := &policy.Strict{Model: model}
	cache := cv.NewCache()
	vols := Volumes{cvID: 0.05}

	rho0, h0 := 4.0, 300000.0
	state := State{cvID: Storage{M: rho0 * vols[cvID], U: rho0 * vols[cvID] * h0}}
	lineRho0 := 2.0
	lineState := LineState{lineID: Storage{M: lineRho0 * 0.002, U: lineRho0 * 0.002 * h0}}

	cfg := DefaultConfig()
	res, err := Step(n, model, pol, cache, vols, state, lineState, 0.01, nil, nil, 0, 0, 1, cfg)
	if err != nil {
		tst.Errorf("Step: %v\n", err)
		return
	}
	if res.Line == nil {
		tst.Errorf("expected a non-nil returned LineState\n")
		return
	}
	if res.Line[lineID].U == lineState[lineID].U {
		tst.Errorf("expected the LineVolume's stored energy to evolve, got unchanged U=%v\n", res.Line[lineID].U)
	}
}

func TestStateCloneIsIndependentOfOriginal(tst *testing.T) {
	s := State{1: Storage{M: 1, U: 2}}
	c := s.Clone()
	c[1] = Storage{M: 99, U: 99}
	chk.Scalar(tst, "original mass", 1e-15, s[1].M, 1)
}

func TestLineStateCloneIsIndependentOfOriginal(tst *testing.T) {
	s := LineState{1: Storage{M: 1, U: 2}}
	c := s.Clone()
	c[1] = Storage{M: 99, U: 99}
	chk.Scalar(tst, "original mass", 1e-15, s[1].M, 1)
}
