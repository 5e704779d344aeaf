// Command thermoflow loads a project file and drives one run to
// completion, printing progress and a trust-labeled diagnostic summary.
// Grounded on the teacher's root main.go: flag.Parse() for the input
// filename, colored io.Pf*/chk.Panic diagnostics, translated from the
// FEM domain's global Start/Run lifecycle (fem.Start, fem.Run, fem.End,
// mpi.Start/Stop) to this repo's single-threaded, no-MPI run.Execute
// call (spec §5: no distributed/concurrent core).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/dpedroso/thermoflow/inp"
	"github.com/dpedroso/thermoflow/integrator"
	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/run"
	"github.com/dpedroso/thermoflow/solver"
	"github.com/dpedroso/thermoflow/thermo"
)

func main() {
	dt := flag.Float64("dt", 0, "transient step size in seconds; omit (or 0) for a steady solve")
	tend := flag.Float64("tend", 0, "transient end time in seconds; omit (or 0) for a steady solve")
	verbose := flag.Bool("v", false, "per-step transient trace (spec §6 environment knob); default is summary only")
	solverVersion := flag.String("solver-version", "thermoflow-1", "solver version string folded into the run ID")
	flag.Parse()

	io.PfWhite("\nthermoflow -- steady/transient thermo-fluid network solver\n\n")

	if len(flag.Args()) == 0 {
		chk.Panic("usage: thermoflow <project.json> [-dt=0.1 -tend=1.0] [-v]")
	}
	path := flag.Arg(0)

	proj, err := inp.ReadProject(path)
	if err != nil {
		io.Pfred("ERROR loading project: %v\n", err)
		os.Exit(1)
	}

	composition, err := proj.Composition.Build()
	if err != nil {
		io.Pfred("ERROR: %v\n", err)
		os.Exit(1)
	}
	// No real-fluid backend is wired into this repo (spec §1 non-goals
	// treat backend selection as an external concern); the surrogate
	// ideal-gas-like LinearFluid model stands in for it here.
	model := thermo.NewLinearFluid(composition, 1039, 300, 300000)

	network, vols, state, lineState, err := proj.Build(model)
	if err != nil {
		io.Pfred("ERROR: %v\n", err)
		os.Exit(1)
	}

	mode := run.Mode(run.SteadyMode{})
	if *dt > 0 && *tend > 0 {
		mode = run.TransientMode{DtS: *dt, TEndS: *tend}
	}

	in := run.Input{
		Network: network, Model: model, Policy: choosePolicy(network, model),
		Volumes: vols, InitialState: state, InitialLineState: lineState, SystemSignature: proj.Signature(),
		SolverConfig: solver.DefaultConfig(), IntegratorConfig: integrator.DefaultConfig(),
	}
	req := run.Request{Mode: mode, SolverVersion: *solverVersion}

	sink := &stdoutSink{}
	summary, err := run.Execute(req, in, sink, progressPrinter(*verbose))
	if err != nil {
		io.Pfred("ERROR: %v\n", err)
		os.Exit(1)
	}

	io.Pf("\n")
	io.Pfcyan("run id          = %d\n", req.ID(proj.Signature()))
	io.Pfcyan("total time      = %.4fs (compile %.4fs, build %.4fs, solve %.4fs, save %.4fs)\n",
		summary.TotalS, summary.CompileS, summary.BuildS, summary.SolveS, summary.SaveS)
	io.Pfcyan("init strategy   = %s\n", summary.InitStrategy)
	if summary.Trusted() {
		io.Pfgreen("result trust    = trusted (0 fallback activations)\n")
	} else {
		io.PfYel("result trust    = fallback activated (%d activations)\n", summary.FallbackUses)
	}
}

// choosePolicy implements spec §4.E.6's automatic initialization-
// strategy selection: a topology with any ControlVolume gets the
// surrogate-backed Relaxed policy so a transient run can ride through a
// momentary EOS rejection; a pure-Junction/Atmosphere steady topology
// gets Strict, since there is no storage state a fallback could protect.
func choosePolicy(n *net.Network, model thermo.Model) policy.Policy {
	for _, node := range n.Nodes {
		if node.Kind == net.KindControlVolume {
			return policy.NewSurrogateBacked(model)
		}
	}
	return policy.NewStrict(model)
}

func progressPrinter(verbose bool) func(run.ProgressEvent) {
	return func(ev run.ProgressEvent) {
		if !verbose {
			if ev.Stage == run.Completed {
				io.Pfgreen("%s (%.4fs)\n", ev.Stage, ev.ElapsedWallS)
			}
			return
		}
		switch {
		case ev.Transient != nil:
			io.Pf("[%-22s] t=%.4fs/%.4fs (%.1f%%) step=%d cutbacks=%d\n",
				ev.Stage, ev.Transient.SimTimeS, ev.Transient.TEndS, 100*ev.Transient.FractionComplete,
				ev.Transient.Step, ev.Transient.CutbackRetries)
		case ev.Steady != nil:
			io.Pf("[%-22s] iter=%d residual=%.3e\n", ev.Stage, ev.Steady.Iteration, ev.Steady.ResidualNorm)
		default:
			io.Pf("[%-22s] elapsed=%.4fs\n", ev.Stage, ev.ElapsedWallS)
		}
	}
}

// stdoutSink is the default ResultSink: one JSON record per line plus a
// one-line manifest, matching spec §6's "record-per-line text format".
type stdoutSink struct{}

func (s *stdoutSink) WriteRecord(rec run.ResultRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func (s *stdoutSink) WriteManifest(runID uint64, req run.Request, summary run.TimingSummary) error {
	b, err := json.Marshal(struct {
		RunID   uint64            `json:"run_id"`
		Version string            `json:"solver_version"`
		Summary run.TimingSummary `json:"summary"`
	}{runID, req.SolverVersion, summary})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, string(b))
	return nil
}
