// Package integrator implements the explicit transient advance of every
// ControlVolume's and LineVolume's (M,U) by fixed-step Runge-Kutta (spec
// §4.G): per-stage candidate state, a snapshot steady solve at that
// state, RK-weighted combination, and cutback subdivision on failure.
// Grounded on gofem/fem.RichardsonExtrap's backup/restore-around-a-
// failed-attempt idiom (richardson.go), adapted from Richardson
// extrapolation's error-estimate halving to the spec's fixed cutback
// schedule (20, 30, 45, 68, 102 substeps).
//
// LineVolume components carry internal volume per spec §4.B and §4.C,
// and integrate their own (M,U) here exactly like a ControlVolume node:
// their internal (ρ,h,P) is recovered from (M,U) via comp.RhoH +
// cv.Cache.BoundaryComponent, and their dM/dt, dU/dt come from
// comp.Derivatives fed by the through-flow the network's snapshot solve
// already computed for that segment (residual.Result.Mdots), paired
// with the upstream port's enthalpy and the segment's own stored
// enthalpy. Because a LineVolume's Mdot law is a function of its two
// ports only (no free pressure unknown of its own), the same signed
// mass flow serves as both its inlet and outlet rate, so its dM/dt is
// identically zero by construction — a quasi-steady-throughflow
// simplification — while dU/dt still tracks the segment mixing its
// stored fluid with whatever enters from upstream.
package integrator

import (
	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/cv"
	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/residual"
	"github.com/dpedroso/thermoflow/solver"
	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// Storage is one node's or LineVolume segment's (M,U) pair.
type Storage struct {
	M, U float64
}

// State is the full set of CV storage unknowns the integrator advances.
type State map[net.NodeID]Storage

// Clone returns a shallow copy (Storage is a value type), used to
// snapshot the step-start state before trying a cutback level.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// LineState is the full set of LineVolume segment storage unknowns the
// integrator advances, keyed by the segment's CompID.
type LineState map[net.CompID]Storage

// Clone returns a shallow copy, used the same way State.Clone is.
func (s LineState) Clone() LineState {
	out := make(LineState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Method selects the explicit RK scheme.
type Method int

const (
	RK4 Method = iota
	Euler
)

// Butcher nodes/weights for the two supported methods: plain fixed-step
// explicit schemes, no embedded error estimate — cutback, not step
// doubling, handles failure here.
var rk4Weights = []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6}

// rk4Fracs is the fraction of the full step already elapsed when each
// stage's candidate is formed (classic RK4: 0, 1/2, 1/2, 1).
var rk4Fracs = []float64{0, 0.5, 0.5, 1}

// Config tunes the integrator.
type Config struct {
	Method         Method
	CutbackLevels  []int // substep counts tried in order on snapshot failure
	SnapshotSolver solver.Config
	Plans          *residual.PlanCache // reused across every RK stage and cutback substep (spec §4.D)
}

// DefaultCutbackLevels is the spec's fixed subdivision schedule.
func DefaultCutbackLevels() []int { return []int{20, 30, 45, 68, 102} }

// DefaultConfig returns an RK4 integrator with the spec's cutback
// schedule, the solver package's default steady-solve tolerances, and a
// fresh plan cache.
func DefaultConfig() Config {
	return Config{Method: RK4, CutbackLevels: DefaultCutbackLevels(), SnapshotSolver: solver.DefaultConfig(), Plans: &residual.PlanCache{}}
}

// Progress mirrors spec §4.G "Emit a progress event with (sim_time,
// fraction_complete, step_index, cutback_count)".
type Progress struct {
	SimTime          float64
	FractionComplete float64
	StepIndex        int
	CutbackCount     int
}

// StepResult is one committed transient step's outcome.
type StepResult struct {
	State    State
	Line     LineState
	Mdots    map[net.CompID]float64
	Progress Progress
}

// Volumes gives each CV node's geometric volume, read once per run and
// passed through rather than stored on the network (spec's arena +
// integer-index graph keeps per-run quantities out of the topology).
type Volumes map[net.NodeID]float64

// Step advances State and lineState by dt using the configured method,
// invoking a snapshot steady solve at every RK stage (spec §4.G step
// 1b) that also evaluates every LineVolume segment's own storage
// derivative alongside the CVs' (spec §4.G step 1c). On failure of any
// stage it retries the whole step at progressively finer cutback levels
// (§4.G "Cutback"); if every level fails the error propagates and the
// caller's state is left untouched — this function never mutates its
// `state`/`lineState` arguments, only returns new ones.
func Step(n *net.Network, model thermo.Model, pol policy.Policy, cache *cv.Cache, vols Volumes,
	state State, lineState LineState, dt float64, qExt map[net.NodeID]float64, onProgress func(Progress), stepIndex int, simTimeStart, simTimeTotal float64, cfg Config) (*StepResult, error) {

	for levelIdx := -1; levelIdx < len(cfg.CutbackLevels); levelIdx++ {
		substeps := 1
		if levelIdx >= 0 {
			substeps = cfg.CutbackLevels[levelIdx]
		}
		sub := dt / float64(substeps)
		cur := state.Clone()
		curLine := lineState.Clone()
		t := simTimeStart
		ok := true
		var mdots map[net.CompID]float64
		for s := 0; s < substeps; s++ {
			next, nextLine, stepMdots, err := advanceOneStep(n, model, pol, cache, vols, cur, curLine, sub, qExt, cfg)
			if err != nil {
				ok = false
				break
			}
			cur = next
			curLine = nextLine
			mdots = stepMdots
			t += sub
			if onProgress != nil && simTimeTotal > 0 {
				onProgress(Progress{SimTime: t, FractionComplete: clamp01(t / simTimeTotal), StepIndex: stepIndex, CutbackCount: levelIdx + 1})
			}
		}
		if ok {
			return &StepResult{State: cur, Line: curLine, Mdots: mdots, Progress: Progress{SimTime: t, FractionComplete: clamp01(t / simTimeTotal), StepIndex: stepIndex, CutbackCount: levelIdx + 1}}, nil
		}
	}
	return nil, thermoerr.New(thermoerr.KindIterationLimit, "integrator.Step", "", "all cutback levels exhausted for step %d", stepIndex)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// advanceOneStep performs one (sub)step of the configured RK method.
func advanceOneStep(n *net.Network, model thermo.Model, pol policy.Policy, cache *cv.Cache, vols Volumes, state State, lineState LineState, dt float64, qExt map[net.NodeID]float64, cfg Config) (State, LineState, map[net.CompID]float64, error) {
	switch cfg.Method {
	case Euler:
		return rkStep(n, model, pol, cache, vols, state, lineState, dt, qExt, cfg, []float64{1})
	default:
		return rkStep(n, model, pol, cache, vols, state, lineState, dt, qExt, cfg, rk4Weights)
	}
}

// stageDeriv is the per-CV (dM/dt, dU/dt) pair produced by one RK
// stage's snapshot solve.
type stageDeriv map[net.NodeID][2]float64

// lineStageDeriv is the per-LineVolume (dM/dt, dU/dt) pair produced by
// one RK stage's snapshot solve.
type lineStageDeriv map[net.CompID][2]float64

// rkStep runs len(weights) stages; stage i > 0 forms its candidate from
// the step-start state plus the preceding stage's derivative scaled by
// rk4Fracs[i]*dt, snapshots a steady solve at that candidate, and
// records its own derivative. The returned state is the step-start
// state plus the weighted sum of all stage derivatives, so RK4 and
// Euler share one implementation through the weight table.
func rkStep(n *net.Network, model thermo.Model, pol policy.Policy, cache *cv.Cache, vols Volumes, state State, lineState LineState, dt float64, qExt map[net.NodeID]float64, cfg Config, weights []float64) (State, LineState, map[net.CompID]float64, error) {
	stages := make([]stageDeriv, len(weights))
	lineStages := make([]lineStageDeriv, len(weights))
	var lastMdots map[net.CompID]float64

	for i := range weights {
		candidate := state.Clone()
		candidateLine := lineState.Clone()
		if i > 0 {
			// Classic RK4 forms stage i's candidate from the step-start
			// state plus the immediately preceding stage's derivative
			// scaled by that stage's fraction of dt (k2, k3 at the
			// half-step, k4 at the full step); Euler has only one stage
			// and never reaches this branch.
			applyIncrement(candidate, stages[i-1], rk4Fracs[i]*dt)
			applyLineIncrement(candidateLine, lineStages[i-1], rk4Fracs[i]*dt)
		}

		res, lineDeriv, err := snapshot(n, model, pol, cache, vols, candidate, candidateLine, qExt, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		lastMdots = res.Mdots

		d := make(stageDeriv, len(vols))
		for id := range vols {
			d[id] = [2]float64{res.NetMassRate[id], res.NetEnergyRate[id] - qExt[id]}
		}
		stages[i] = d
		lineStages[i] = lineDeriv
	}

	out := state.Clone()
	outLine := lineState.Clone()
	for i, w := range weights {
		applyIncrement(out, stages[i], w*dt)
		applyLineIncrement(outLine, lineStages[i], w*dt)
	}
	return out, outLine, lastMdots, nil
}

func applyIncrement(state State, d stageDeriv, dt float64) {
	for id, rate := range d {
		s := state[id]
		s.M += dt * rate[0]
		s.U += dt * rate[1]
		state[id] = s
	}
}

func applyLineIncrement(state LineState, d lineStageDeriv, dt float64) {
	for id, rate := range d {
		s := state[id]
		s.M += dt * rate[0]
		s.U += dt * rate[1]
		state[id] = s
	}
}

// snapshot materializes every CV's (ρ,h,P) from its candidate (M,U),
// gets the cached transient plan (Junction pressures only free,
// rebuilding only when the network's signature has changed, spec §4.D),
// runs the steady solver over that reduced unknown set (spec §4.G step
// 1b), and evaluates every LineVolume segment's own storage derivative
// from the resulting through-flow (spec §4.G step 1c).
func snapshot(n *net.Network, model thermo.Model, pol policy.Policy, cache *cv.Cache, vols Volumes, state State, lineState LineState, qExt map[net.NodeID]float64, cfg Config) (*residual.Result, lineStageDeriv, error) {
	ctx := residual.NewContext()
	for id, vol := range vols {
		st := state[id]
		rho, h, err := cv.RhoH(st.M, st.U, vol)
		if err != nil {
			return nil, nil, err
		}
		b, err := cache.Boundary(id, model, rho, h, model.Composition(), 0, thermo.DefaultInversionConfig())
		if err != nil {
			return nil, nil, err
		}
		ctx.FixedPressure[id] = b.P
		ctx.LaggedEnthalpy[id] = h
		if q, ok := qExt[id]; ok {
			ctx.QExt[id] = q
		}
	}

	plans := cfg.Plans
	if plans == nil {
		plans = &residual.PlanCache{}
	}
	plan := plans.GetTransient(n)
	x0 := make([]float64, plan.NDim())
	for i, u := range plan.Unknowns {
		if v, ok := ctx.LaggedEnthalpy[u.Node]; ok {
			x0[i] = v
		}
	}

	res, err := solver.SolveSteady(n, plan, model, pol, ctx, x0, cfg.SnapshotSolver)
	if err != nil {
		return nil, nil, err
	}
	full, err := residual.Evaluate(n, plan, res.X, model, pol, ctx)
	if err != nil {
		return nil, nil, err
	}

	lineDeriv, err := lineVolumeDerivatives(n, plan, res.X, ctx, model, pol, cache, lineState, full.Mdots)
	if err != nil {
		return nil, nil, err
	}
	return full, lineDeriv, nil
}

// lineVolumeDerivatives evaluates (dM/dt, dU/dt) for every LineVolume
// segment's own storage (spec §4.C, §4.G step 1c), recovering each
// segment's internal P from its own (M,U) via the same ρ,h->P path CVs
// use (cv.RhoH + cv.Cache.BoundaryComponent), then applying
// comp.Derivatives with the segment's own through-flow (already
// computed for the network's snapshot, residual.Result.Mdots) as both
// inlet and outlet rate: the upstream port's enthalpy is hIn (inlet's
// if mdot >= 0, else outlet's), and the segment's own stored enthalpy
// is hOut, so dM/dt is identically zero (quasi-steady throughflow) while
// dU/dt tracks the segment mixing with whatever enters from upstream.
func lineVolumeDerivatives(n *net.Network, plan *residual.Plan, x []float64, ctx *residual.Context, model thermo.Model, pol policy.Policy, cache *cv.Cache, lineState LineState, mdots map[net.CompID]float64) (lineStageDeriv, error) {
	out := make(lineStageDeriv)
	for cid, c := range n.Comps {
		lv, ok := c.(comp.Storing)
		if !ok {
			continue
		}
		id := net.CompID(cid)
		st := lineState[id]
		rho, h := comp.RhoH(st.M, st.U, lv.Volume())
		if rho <= 0 {
			// Not yet seeded by the caller (spec requires every LineVolume's
			// initial (M,U) to come from inp.Project.Build); contributes no
			// derivative until it is.
			out[id] = [2]float64{0, 0}
			continue
		}
		// Recovering this segment's own boundary pressure exercises the
		// same cache-tolerance reuse CVs get, and keeps it populated for
		// run.transientRecord's later (P,T) reporting of this segment.
		if _, err := cache.BoundaryComponent(id, model, rho, h, model.Composition(), 0, thermo.DefaultInversionConfig()); err != nil {
			return nil, err
		}

		inletID, outletID := c.Ports()
		_, inH, err := residual.NodeState(n, plan, x, ctx, model, pol, net.NodeID(inletID))
		if err != nil {
			return nil, err
		}
		_, outH, err := residual.NodeState(n, plan, x, ctx, model, pol, net.NodeID(outletID))
		if err != nil {
			return nil, err
		}

		mdot := mdots[id]
		hIn := inH
		if mdot < 0 {
			hIn = outH
		}
		// qExt is keyed by net.NodeID and carries per-CV-node external heat
		// loss only (spec §4.G); no per-segment heat loss input exists for
		// LineVolume, so its own Qext is always zero here.
		dMdt, dUdt := comp.Derivatives(mdot, hIn, mdot, h, 0)
		out[id] = [2]float64{dMdt, dUdt}
	}
	return out, nil
}
