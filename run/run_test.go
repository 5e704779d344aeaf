package run

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/integrator"
	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/solver"
	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

func n2Fluid() *thermo.LinearFluid {
	return thermo.NewLinearFluid(thermo.NewPure(thermo.N2), 1039, 300, 300000)
}

type fakeSink struct {
	records   []ResultRecord
	manifests int
}

func (s *fakeSink) WriteRecord(rec ResultRecord) error {
	s.records = append(s.records, rec)
	return nil
}
func (s *fakeSink) WriteManifest(runID uint64, req Request, summary TimingSummary) error {
	s.manifests++
	return nil
}

func orificeNetwork(tst *testing.T) *net.Network {
	tst.Helper()
	n := net.New()
	up := n.AddAtmosphere("up", 200000, 300)
	down := n.AddAtmosphere("down", 100000, 300)
	if _, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(up), OutletID: comp.NodeID(down), Cd: 0.65, Area: 1e-4}); err != nil {
		tst.Errorf("AddComponent: %v\n", err)
	}
	return n
}

func TestExecuteSteadyOrificeScenario(tst *testing.T) {
	n := orificeNetwork(tst)
	model := n2Fluid()
	in := Input{
		Network:      n,
		Model:        model,
		Policy:       &policy.Strict{Model: model},
		SolverConfig: solver.DefaultConfig(),
	}
	req := Request{Mode: SteadyMode{}, SolverVersion: "test-1"}
	sink := &fakeSink{}

	summary, err := Execute(req, in, sink, nil)
	if err != nil {
		tst.Errorf("Execute: %v\n", err)
		return
	}
	if summary.SteadyIterations > 3 {
		tst.Errorf("expected convergence within 3 Newton iterations for a two-atmosphere orifice, got %d\n", summary.SteadyIterations)
	}
	chk.IntAssert(len(sink.records), 1)
	chk.IntAssert(len(sink.records[0].Components), 1)
}

func TestExecuteTransientVentScenario(tst *testing.T) {
	n := net.New()
	cvID := n.AddControlVolume("tank", 0.05)
	atm := n.AddAtmosphere("atm", 101325, 300)
	if _, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cvID), OutletID: comp.NodeID(atm), Cd: 0.65, Area: 1e-4}); err != nil {
		tst.Errorf("AddComponent: %v\n", err)
		return
	}
	model := n2Fluid()
	vol := 0.05
	rho0, h0 := 40.0, 300000.0 // 3.5 MPa-ish at T=300K for this surrogate's R
	in := Input{
		Network:          n,
		Model:            model,
		Policy:           &policy.Strict{Model: model},
		Volumes:          integrator.Volumes{cvID: vol},
		InitialState:     integrator.State{cvID: {M: rho0 * vol, U: rho0 * vol * h0}},
		SolverConfig:     solver.DefaultConfig(),
		IntegratorConfig: integrator.DefaultConfig(),
	}
	req := Request{Mode: TransientMode{DtS: 0.1, TEndS: 0.3}, SolverVersion: "test-1"}
	sink := &fakeSink{}

	summary, err := Execute(req, in, sink, nil)
	if err != nil {
		tst.Errorf("Execute: %v\n", err)
		return
	}
	chk.IntAssert(summary.TransientSteps, 3)
	chk.IntAssert(len(sink.records), 4) // t=0 plus 3 committed steps
	firstRho := sink.records[0].Nodes[0].Rho
	lastRho := sink.records[len(sink.records)-1].Nodes[0].Rho
	if lastRho >= firstRho {
		tst.Errorf("expected tank density to decrease venting to atmosphere, got %.6g -> %.6g\n", firstRho, lastRho)
	}
}

func TestExecuteTransientLineVolumeScenarioReportsStorageSample(tst *testing.T) {
	n := net.New()
	cvID := n.AddControlVolume("tank", 0.05)
	mid := n.AddJunction("mid")
	atm := n.AddAtmosphere("atm", 101325, 300)
	if _, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cvID), OutletID: comp.NodeID(mid), Cd: 0.65, Area: 1e-4}); err != nil {
		tst.Errorf("AddComponent orifice: %v\n", err)
		return
	}
	lineID, err := n.AddComponent(&comp.LineVolume{InletID: comp.NodeID(mid), OutletID: comp.NodeID(atm), Vol: 0.002, Cd: 0.65, Area: 1e-4})
	if err != nil {
		tst.Errorf("AddComponent linevolume: %v\n", err)
		return
	}

	model := n2Fluid()
	vol := 0.05
	rho0, h0 := 40.0, 300000.0
	lineRho0 := 2.0
	in := Input{
		Network:          n,
		Model:            model,
		Policy:           &policy.Strict{Model: model},
		Volumes:          integrator.Volumes{cvID: vol},
		InitialState:     integrator.State{cvID: {M: rho0 * vol, U: rho0 * vol * h0}},
		InitialLineState: integrator.LineState{lineID: {M: lineRho0 * 0.002, U: lineRho0 * 0.002 * h0}},
		SolverConfig:     solver.DefaultConfig(),
		IntegratorConfig: integrator.DefaultConfig(),
	}
	req := Request{Mode: TransientMode{DtS: 0.1, TEndS: 0.2}, SolverVersion: "test-1"}
	sink := &fakeSink{}

	_, err = Execute(req, in, sink, nil)
	if err != nil {
		tst.Errorf("Execute: %v\n", err)
		return
	}
	last := sink.records[len(sink.records)-1]
	chk.IntAssert(len(last.LineVolumes), 1)
	if last.LineVolumes[0].Comp != lineID {
		tst.Errorf("expected the reported LineVolume sample to be keyed by its component id\n")
	}
	if last.LineVolumes[0].Rho <= 0 {
		tst.Errorf("expected a positive reported LineVolume density, got %v\n", last.LineVolumes[0].Rho)
	}
}

func TestExecuteRejectsTransientWithoutInitialState(tst *testing.T) {
	n := orificeNetwork(tst)
	model := n2Fluid()
	in := Input{Network: n, Model: model, Policy: &policy.Strict{Model: model}, SolverConfig: solver.DefaultConfig()}
	req := Request{Mode: TransientMode{DtS: 0.1, TEndS: 1.0}, SolverVersion: "test-1"}

	_, err := Execute(req, in, nil, nil)
	if err == nil {
		tst.Errorf("expected validation error for missing transient state\n")
	}
}

func TestExecuteTransientTwoCVSeriesValveScenario(tst *testing.T) {
	n := net.New()
	cv1 := n.AddControlVolume("cv1", 0.05)
	cv2 := n.AddControlVolume("cv2", 0.05)
	atm := n.AddAtmosphere("atm", 101325, 300)
	if _, err := n.AddComponent(&comp.Valve{InletID: comp.NodeID(cv1), OutletID: comp.NodeID(cv2), Cd: 0.65, AreaMax: 1e-4, Position: 0.5}); err != nil {
		tst.Errorf("AddComponent valve: %v\n", err)
		return
	}
	if _, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cv2), OutletID: comp.NodeID(atm), Cd: 0.65, Area: 1e-4}); err != nil {
		tst.Errorf("AddComponent orifice: %v\n", err)
		return
	}

	model := n2Fluid()
	vol := 0.05
	rho1, h1 := 40.0, 300000.0
	rho2, h2 := 20.0, 300000.0
	in := Input{
		Network:          n,
		Model:            model,
		Policy:           policy.NewSurrogateBacked(model),
		Volumes:          integrator.Volumes{cv1: vol, cv2: vol},
		InitialState:     integrator.State{cv1: {M: rho1 * vol, U: rho1 * vol * h1}, cv2: {M: rho2 * vol, U: rho2 * vol * h2}},
		SolverConfig:     solver.DefaultConfig(),
		IntegratorConfig: integrator.DefaultConfig(),
	}
	req := Request{Mode: TransientMode{DtS: 0.05, TEndS: 0.2}, SolverVersion: "test-1"}
	sink := &fakeSink{}

	summary, err := Execute(req, in, sink, nil)
	if err != nil {
		tst.Errorf("Execute: %v\n", err)
		return
	}
	chk.IntAssert(summary.CutbackRetries, 0)
	chk.IntAssert(summary.TransientSteps, 4)
	chk.IntAssert(len(sink.records), 5) // t=0 plus 4 committed steps
}

// flakyModel wraps LinearFluid's closed-form law but synthetically
// rejects any PH query below failBelowP, standing in for a real-fluid
// backend's validity floor so a transient vent can be driven past it
// and exercise the surrogate fallback path end to end.
type flakyModel struct {
	*thermo.LinearFluid
	failBelowP float64
}

func (m *flakyModel) State(pair thermo.InputPair, a, b float64) (*thermo.State, error) {
	if pair == thermo.PH && a < m.failBelowP {
		return nil, thermoerr.New(thermoerr.KindOutOfRange, "flakyModel", "",
			"pressure %.6g below synthetic EOS validity floor %.6g", a, m.failBelowP)
	}
	return m.LinearFluid.State(pair, a, b)
}

func TestExecuteTransientSurrogateFallbackScenario(tst *testing.T) {
	n := net.New()
	cvID := n.AddControlVolume("tank", 0.05)
	atm := n.AddAtmosphere("atm", 101325, 300)
	if _, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cvID), OutletID: comp.NodeID(atm), Cd: 0.65, Area: 1e-4}); err != nil {
		tst.Errorf("AddComponent: %v\n", err)
		return
	}

	base := n2Fluid()
	vol := 0.05
	rho0, h0 := 40.0, 300000.0
	t0 := base.Tref + (h0-base.Href)/base.Cp
	st0, err := base.State(thermo.RhoT, rho0, t0)
	if err != nil {
		tst.Errorf("seeding State query: %v\n", err)
		return
	}
	model := &flakyModel{LinearFluid: base, failBelowP: st0.P * 0.9999}

	in := Input{
		Network:          n,
		Model:            model,
		Policy:           policy.NewSurrogateBacked(model),
		Volumes:          integrator.Volumes{cvID: vol},
		InitialState:     integrator.State{cvID: {M: rho0 * vol, U: rho0 * vol * h0}},
		SolverConfig:     solver.DefaultConfig(),
		IntegratorConfig: integrator.DefaultConfig(),
	}
	req := Request{Mode: TransientMode{DtS: 0.1, TEndS: 0.3}, SolverVersion: "test-1"}
	sink := &fakeSink{}

	summary, err := Execute(req, in, sink, nil)
	if err != nil {
		tst.Errorf("Execute: %v\n", err)
		return
	}
	if summary.FallbackUses == 0 {
		tst.Errorf("expected at least one fallback activation once the tank pressure decays past the synthetic EOS floor\n")
	}
	if summary.Trusted() {
		tst.Errorf("expected an untrusted summary once a fallback has activated\n")
	}
}

func TestRequestIDDeterministicAndModeSensitive(tst *testing.T) {
	sig := "network-signature-v1"
	r1 := Request{Mode: SteadyMode{}, SolverVersion: "v1"}
	r2 := Request{Mode: SteadyMode{}, SolverVersion: "v1"}
	if r1.ID(sig) != r2.ID(sig) {
		tst.Errorf("identical requests must hash identically\n")
	}
	r3 := Request{Mode: TransientMode{DtS: 0.1, TEndS: 1.0}, SolverVersion: "v1"}
	if r1.ID(sig) == r3.ID(sig) {
		tst.Errorf("different modes must hash differently\n")
	}
}
