package run

import (
	"time"

	"github.com/cpmech/gosl/utl"
	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/cv"
	"github.com/dpedroso/thermoflow/integrator"
	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/residual"
	"github.com/dpedroso/thermoflow/solver"
	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// Input is the already-assembled runtime this package drives: the
// project loader (out of scope, spec §1) is responsible for turning a
// project file into a *net.Network plus initial CV storage state before
// calling Execute.
type Input struct {
	Network *net.Network
	Model   thermo.Model
	Policy  policy.Policy

	// SystemSignature is the caller-supplied canonical encoding of the
	// system definition (typically inp.Project.Signature()) folded into
	// Request.ID alongside the mode and solver version.
	SystemSignature string

	// Volumes and InitialState are required for TransientMode only.
	// InitialLineState seeds every LineVolume segment's own (M,U); it may
	// be nil/empty for a topology with no LineVolume components.
	Volumes          integrator.Volumes
	InitialState     integrator.State
	InitialLineState integrator.LineState
	QExt             map[net.NodeID]float64

	SolverConfig     solver.Config
	IntegratorConfig integrator.Config
}

// strategyName reports which initialization strategy (spec §4.E.6)
// this policy corresponds to, for the timing summary's InitStrategy
// field: "Relaxed" for a SurrogateBacked policy, "Strict" for any other.
// The label follows only from the policy the caller supplied;
// cmd/thermoflow's choosePolicy gives SurrogateBacked to every topology
// with a ControlVolume (a single-CV one included) and Strict otherwise.
func strategyName(pol policy.Policy) string {
	if _, ok := pol.(*policy.SurrogateBacked); ok {
		return "Relaxed"
	}
	return "Strict"
}

// Execute drives one run to completion, emitting progress through
// onProgress (called synchronously, unthrottled, per spec §5) and
// returning the final timing summary. Every time point solved is
// written to sink as it becomes available, so a crash mid-run still
// leaves partial progress persisted (spec §7 "Partial progress is
// persisted up to the failing step").
func Execute(req Request, in Input, sink ResultSink, onProgress func(ProgressEvent)) (TimingSummary, error) {
	start := time.Now()
	var summary TimingSummary
	summary.InitStrategy = strategyName(in.Policy)

	emit(onProgress, ProgressEvent{Stage: CompilingRuntime, ElapsedWallS: time.Since(start).Seconds()})
	if err := in.Network.ValidateTopology(); err != nil {
		return summary, err
	}
	summary.CompileS = time.Since(start).Seconds()

	var result TimingSummary
	var err error
	switch m := req.Mode.(type) {
	case SteadyMode:
		result, err = executeSteady(start, in, sink, onProgress, summary)
	case TransientMode:
		result, err = executeTransient(start, m, in, sink, onProgress, summary)
	default:
		return summary, thermoerr.New(thermoerr.KindValidation, "Execute", "", "unrecognized run mode %T", req.Mode)
	}
	if err != nil {
		return result, err
	}
	if sink != nil {
		runID := req.ID(in.SystemSignature)
		if err := sink.WriteManifest(runID, req, result); err != nil {
			return result, thermoerr.Wrap(thermoerr.KindIO, "SavingResults", "", err)
		}
	}
	return result, nil
}

func executeSteady(start time.Time, in Input, sink ResultSink, onProgress func(ProgressEvent), summary TimingSummary) (TimingSummary, error) {
	buildStart := time.Now()
	emit(onProgress, ProgressEvent{Stage: BuildingSteadyProblem, ElapsedWallS: time.Since(start).Seconds()})
	plan := residual.BuildPlan(in.Network)
	ctx := residual.NewContext()
	x0 := make([]float64, plan.NDim())
	summary.BuildS = time.Since(buildStart).Seconds()

	solveStart := time.Now()
	emit(onProgress, ProgressEvent{Stage: SolvingSteady, ElapsedWallS: time.Since(start).Seconds()})
	res, err := solver.SolveSteady(in.Network, plan, in.Model, in.Policy, ctx, x0, in.SolverConfig)
	if err != nil {
		return summary, err
	}
	summary.SolveS = time.Since(solveStart).Seconds()
	summary.SteadyIterations = res.Iters
	if n := len(res.Log); n > 0 {
		summary.SteadyResidualNorm = res.Log[n-1].LargestR
	}
	emit(onProgress, ProgressEvent{Stage: SolvingSteady, ElapsedWallS: time.Since(start).Seconds(),
		Steady: &SteadyProgress{Iteration: res.Iters, ResidualNorm: summary.SteadyResidualNorm}})

	saveStart := time.Now()
	emit(onProgress, ProgressEvent{Stage: SavingResults, ElapsedWallS: time.Since(start).Seconds()})
	rec, err := buildRecord(0, in.Network, plan, res.X, res.Mdots, in.Model, in.Policy, ctx)
	if err != nil {
		return summary, err
	}
	if sink != nil {
		if err := sink.WriteRecord(rec); err != nil {
			return summary, thermoerr.Wrap(thermoerr.KindIO, "SavingResults", "", err)
		}
	}
	summary.SaveS = time.Since(saveStart).Seconds()

	stats := in.Policy.Snapshot()
	summary.RealFluidAttempts = stats.RealFluidAttempts
	summary.RealFluidSuccesses = stats.RealFluidSuccesses
	summary.FallbackUses = stats.FallbackActivations
	summary.SurrogatePopulated = stats.SurrogatePopulated

	summary.TotalS = time.Since(start).Seconds()
	emit(onProgress, ProgressEvent{Stage: Completed, ElapsedWallS: summary.TotalS})
	return summary, nil
}

func executeTransient(start time.Time, mode TransientMode, in Input, sink ResultSink, onProgress func(ProgressEvent), summary TimingSummary) (TimingSummary, error) {
	if in.Volumes == nil || in.InitialState == nil {
		return summary, thermoerr.New(thermoerr.KindValidation, "executeTransient", "", "transient mode requires Input.Volumes and Input.InitialState")
	}
	if mode.DtS <= 0 || mode.TEndS <= 0 {
		return summary, thermoerr.New(thermoerr.KindValidation, "executeTransient", "", "transient mode requires positive DtS and TEndS")
	}

	buildStart := time.Now()
	emit(onProgress, ProgressEvent{Stage: BuildingSteadyProblem, ElapsedWallS: time.Since(start).Seconds()})
	cache := cv.NewCache()
	if err := seedSurrogates(in, cache); err != nil {
		return summary, err
	}
	summary.BuildS = time.Since(buildStart).Seconds()

	solveStart := time.Now()
	emit(onProgress, ProgressEvent{Stage: RunningTransient, ElapsedWallS: time.Since(start).Seconds()})

	state := in.InitialState
	lineState := in.InitialLineState
	nSteps := int(mode.TEndS/mode.DtS + 0.5)
	// grid is the planned commit-time sequence, built once via
	// utl.LinSpace rather than accumulating step += dt, so the reported
	// sim time never drifts from TEndS by repeated float addition —
	// grounded on the teacher's own use of utl.LinSpace to lay out a
	// fixed sample grid ahead of a stepping loop (ana/pressurised_cylinder.go).
	grid := utl.LinSpace(0, mode.TEndS, nSteps+1)
	t := 0.0

	saveStart := time.Now()
	rec0, err := transientRecord(0, in.Network, in.Model, in.Policy, state, lineState, in.Volumes, cache, nil)
	if err != nil {
		return summary, err
	}
	if sink != nil {
		if err := sink.WriteRecord(rec0); err != nil {
			return summary, thermoerr.Wrap(thermoerr.KindIO, "SavingResults", "", err)
		}
	}
	summary.SaveS += time.Since(saveStart).Seconds()

	for step := 0; step < nSteps; step++ {
		sres, err := integrator.Step(in.Network, in.Model, in.Policy, cache, in.Volumes, state, lineState, mode.DtS, in.QExt,
			func(p integrator.Progress) {
				emit(onProgress, ProgressEvent{Stage: RunningTransient, ElapsedWallS: time.Since(start).Seconds(), Transient: &TransientProgress{
					SimTimeS: p.SimTime, TEndS: mode.TEndS, FractionComplete: p.FractionComplete, Step: p.StepIndex, CutbackRetries: p.CutbackCount,
				}})
			}, step, t, mode.TEndS, in.IntegratorConfig)
		if err != nil {
			return summary, err
		}
		state = sres.State
		lineState = sres.Line
		t = grid[step+1]
		summary.TransientSteps++
		summary.CutbackRetries += sres.Progress.CutbackCount

		saveStart = time.Now()
		rec, err := transientRecord(t, in.Network, in.Model, in.Policy, state, lineState, in.Volumes, cache, sres.Mdots)
		if err != nil {
			return summary, err
		}
		if sink != nil {
			if err := sink.WriteRecord(rec); err != nil {
				return summary, thermoerr.Wrap(thermoerr.KindIO, "SavingResults", "", err)
			}
		}
		summary.SaveS += time.Since(saveStart).Seconds()
	}
	summary.SolveS = time.Since(solveStart).Seconds() - summary.SaveS

	stats := in.Policy.Snapshot()
	summary.RealFluidAttempts = stats.RealFluidAttempts
	summary.RealFluidSuccesses = stats.RealFluidSuccesses
	summary.FallbackUses = stats.FallbackActivations
	summary.SurrogatePopulated = stats.SurrogatePopulated

	summary.TotalS = time.Since(start).Seconds()
	emit(onProgress, ProgressEvent{Stage: Completed, ElapsedWallS: summary.TotalS})
	return summary, nil
}

// seedSurrogates primes a SurrogateBacked policy's per-node frozen
// surrogate from each control volume's converged initial (ρ,h)->P state
// before the first transient step runs (spec §4.B "Surrogate
// population"). Without this, CreateState's fallback path has nothing
// to fall back to on the very first real-fluid rejection: SeedSurrogate
// is otherwise only reached from inside a successful CreateState call
// that already found an existing surrogate to refresh. A Strict policy
// is a no-op here.
func seedSurrogates(in Input, cache *cv.Cache) error {
	sur, ok := in.Policy.(*policy.SurrogateBacked)
	if !ok {
		return nil
	}
	molarMass := in.Model.Composition().MolarMass()
	for id, vol := range in.Volumes {
		st := in.InitialState[id]
		rho, h, err := cv.RhoH(st.M, st.U, vol)
		if err != nil {
			return err
		}
		b, err := cache.Boundary(id, in.Model, rho, h, in.Model.Composition(), 0, thermo.DefaultInversionConfig())
		if err != nil {
			return err
		}
		full, err := in.Model.State(thermo.PH, b.P, h)
		if err != nil {
			return thermoerr.Wrap(thermoerr.KindOutOfRange, "seedSurrogates", "", err)
		}
		sur.SeedSurrogate(policy.NodeID(id), full, full.Cp, molarMass)
	}
	return nil
}

// buildRecord reports every node's (P,T,rho,h,phase) and every
// component's (mdot, deltaP) at the steady solution x.
func buildRecord(timeS float64, n *net.Network, plan *residual.Plan, x []float64, mdots map[net.CompID]float64, model thermo.Model, pol policy.Policy, ctx *residual.Context) (ResultRecord, error) {
	rec := ResultRecord{TimeS: timeS}
	portP := make(map[net.NodeID]float64, len(n.Nodes))
	for _, node := range n.Nodes {
		p, h, err := residual.NodeState(n, plan, x, ctx, model, pol, node.ID)
		if err != nil {
			return rec, err
		}
		portP[node.ID] = p
		sample, err := nodeSample(node.ID, p, h, model)
		if err != nil {
			return rec, err
		}
		rec.Nodes = append(rec.Nodes, sample)
	}
	for cid, c := range n.Comps {
		inlet, outlet := c.Ports()
		rec.Components = append(rec.Components, ComponentSample{
			Comp: net.CompID(cid), Mdot: mdots[net.CompID(cid)],
			DeltaP: portP[net.NodeID(inlet)] - portP[net.NodeID(outlet)],
		})
	}
	return rec, nil
}

// transientRecord reports every CV's committed (P,T,rho,h,phase), every
// LineVolume segment's own committed (P,T,rho,h), and every component's
// last-stage (mdot, deltaP) at one transient time point, recovering
// non-CV node pressures from the same transient snapshot machinery the
// integrator itself used for the final stage.
func transientRecord(timeS float64, n *net.Network, model thermo.Model, pol policy.Policy, state integrator.State, lineState integrator.LineState, vols integrator.Volumes, cache *cv.Cache, mdots map[net.CompID]float64) (ResultRecord, error) {
	rec := ResultRecord{TimeS: timeS}
	ctx := residual.NewContext()
	portP := make(map[net.NodeID]float64, len(n.Nodes))

	for id, vol := range vols {
		st := state[id]
		rho, h, err := cv.RhoH(st.M, st.U, vol)
		if err != nil {
			return rec, err
		}
		b, err := cache.Boundary(id, model, rho, h, model.Composition(), 0, thermo.DefaultInversionConfig())
		if err != nil {
			return rec, err
		}
		ctx.FixedPressure[id] = b.P
		ctx.LaggedEnthalpy[id] = h
	}

	plan := residual.BuildTransientPlan(n)
	var x []float64
	if plan.NDim() > 0 {
		x0 := make([]float64, plan.NDim())
		res, err := solver.SolveSteady(n, plan, model, pol, ctx, x0, solver.DefaultConfig())
		if err != nil {
			return rec, err
		}
		x = res.X
	}

	for _, node := range n.Nodes {
		p, h, err := residual.NodeState(n, plan, x, ctx, model, pol, node.ID)
		if err != nil {
			return rec, err
		}
		portP[node.ID] = p
		sample, err := nodeSample(node.ID, p, h, model)
		if err != nil {
			return rec, err
		}
		rec.Nodes = append(rec.Nodes, sample)
	}
	for cid, c := range n.Comps {
		inlet, outlet := c.Ports()
		rec.Components = append(rec.Components, ComponentSample{
			Comp: net.CompID(cid), Mdot: mdots[net.CompID(cid)],
			DeltaP: portP[net.NodeID(inlet)] - portP[net.NodeID(outlet)],
		})
		if lv, ok := c.(comp.Storing); ok {
			id := net.CompID(cid)
			st := lineState[id]
			rho, h := comp.RhoH(st.M, st.U, lv.Volume())
			if rho <= 0 {
				continue
			}
			b, err := cache.BoundaryComponent(id, model, rho, h, model.Composition(), 0, thermo.DefaultInversionConfig())
			if err != nil {
				return rec, err
			}
			sample, err := nodeSample(net.NodeID(id), b.P, h, model)
			if err != nil {
				return rec, err
			}
			rec.LineVolumes = append(rec.LineVolumes, LineVolumeSample{Comp: id, P: sample.P, T: sample.T, Rho: sample.Rho, H: sample.H})
		}
	}
	return rec, nil
}

func nodeSample(id net.NodeID, p, h float64, model thermo.Model) (NodeSample, error) {
	st, err := model.State(thermo.PH, p, h)
	if err != nil {
		return NodeSample{}, err
	}
	return NodeSample{Node: id, P: st.P, T: st.T, Rho: st.Rho, H: st.H, Phase: st.Ph.String()}, nil
}
