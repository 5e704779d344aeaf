package main

import (
	"testing"

	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/run"
	"github.com/dpedroso/thermoflow/thermo"
)

func TestChoosePolicySelectsSurrogateForControlVolumeTopology(tst *testing.T) {
	n := net.New()
	n.AddControlVolume("tank", 0.05)
	n.AddAtmosphere("atm", 101325, 300)
	model := thermo.NewLinearFluid(thermo.NewPure(thermo.N2), 1039, 300, 300000)

	pol := choosePolicy(n, model)
	if _, ok := pol.(*policy.SurrogateBacked); !ok {
		tst.Errorf("expected SurrogateBacked policy for a CV-bearing topology, got %T\n", pol)
	}
}

func TestChoosePolicySelectsStrictForJunctionOnlyTopology(tst *testing.T) {
	n := net.New()
	n.AddAtmosphere("up", 200000, 300)
	n.AddAtmosphere("down", 100000, 300)
	model := thermo.NewLinearFluid(thermo.NewPure(thermo.N2), 1039, 300, 300000)

	pol := choosePolicy(n, model)
	if _, ok := pol.(*policy.Strict); !ok {
		tst.Errorf("expected Strict policy for a junction/atmosphere-only topology, got %T\n", pol)
	}
}

func TestProgressPrinterDoesNotPanicAcrossEveryStageAndVerbosity(tst *testing.T) {
	for _, verbose := range []bool{false, true} {
		p := progressPrinter(verbose)
		p(run.ProgressEvent{Stage: run.LoadingProject})
		p(run.ProgressEvent{Stage: run.SolvingSteady, Steady: &run.SteadyProgress{Iteration: 2, ResidualNorm: 1e-7}})
		p(run.ProgressEvent{Stage: run.RunningTransient, Transient: &run.TransientProgress{SimTimeS: 0.1, TEndS: 1.0, FractionComplete: 0.1, Step: 1}})
		p(run.ProgressEvent{Stage: run.Completed})
	}
}
