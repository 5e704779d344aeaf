package residual

import (
	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/policy"
	"github.com/dpedroso/thermoflow/thermo"
)

// Context carries per-evaluation data that must not be a hidden global:
// lagged junction enthalpies (spec §4.D, design notes "Junction enthalpy
// lagging" — an explicit field of the current residual-evaluation
// context, updated between outer Newton iterations, never a package-level
// mutable), plus the transient forcing terms (dM/dt, dU/dt, Q_ext) that
// are zero in steady mode.
type Context struct {
	LaggedEnthalpy map[net.NodeID]float64
	DMDt           map[net.NodeID]float64
	DUDt           map[net.NodeID]float64
	QExt           map[net.NodeID]float64

	// FixedPressure supplies P for any node excluded from the plan's free
	// unknowns that is not Atmosphere: a blocked-subgraph CV boundary, or
	// (during a transient RK-stage snapshot, BuildTransientPlan) every
	// ControlVolume, whose (P,h) the cv package has already materialized
	// from (M,U) before this Evaluate call.
	FixedPressure map[net.NodeID]float64
}

// NewContext returns an empty Context with all maps initialized to the
// steady-mode defaults (zero transient forcing).
func NewContext() *Context {
	return &Context{
		LaggedEnthalpy: make(map[net.NodeID]float64),
		DMDt:           make(map[net.NodeID]float64),
		DUDt:           make(map[net.NodeID]float64),
		QExt:           make(map[net.NodeID]float64),
		FixedPressure:  make(map[net.NodeID]float64),
	}
}

// Result holds the residual vector plus the per-component mass flows
// computed while assembling it, so callers (solver line search,
// integrator derivative evaluation) get both without a second pass.
type Result struct {
	R     []float64
	Mdots map[net.CompID]float64

	// NetMassRate and NetEnergyRate are the per-node Σṁ_in−Σṁ_out and
	// Σṁ_in·h_in−Σṁ_out·h_out accumulations computed while assembling R,
	// exposed so a transient snapshot (where CVs are fixed rather than
	// free unknowns, see BuildTransientPlan) can read them directly as
	// dM/dt and dU/dt-before-Qext without a second pass over components
	// (spec §4.F "Derivatives").
	NetMassRate   map[net.NodeID]float64
	NetEnergyRate map[net.NodeID]float64

	// InflowMass and InflowEnergy are the inflow-only (unsigned) sums per
	// node, used by RefreshJunctionLag to compute the flow-weighted
	// enthalpy a Junction's next outer iteration should carry.
	InflowMass   map[net.NodeID]float64
	InflowEnergy map[net.NodeID]float64
}

// NodeState resolves a node's current (P,h) from the unknown vector x
// (for free nodes), the atmosphere's fixed boundary values (for
// Atmosphere nodes), or the lagged enthalpy context (for Junction h).
// ControlVolume states are run through the state-creation policy
// (Atmosphere states are queried directly against the model, PT) so a
// query that falls outside real-fluid validity triggers the
// fallback/surrogate path (or propagates failure) right where the
// iterate is formed, rather than deep inside a component's own law.
func NodeState(n *net.Network, plan *Plan, x []float64, ctx *Context, model thermo.Model, pol policy.Policy, id net.NodeID) (p, h float64, err error) {
	rec := n.Node(id)
	if rec.Kind == net.KindAtmosphere {
		// Fixed boundary: queried directly against the model (PT), never
		// through the fallback policy, since it is never a solver
		// unknown and therefore never subject to iterate rejection.
		st, serr := model.State(thermo.PT, rec.AtmP, rec.AtmT)
		if serr != nil {
			return 0, 0, serr
		}
		return rec.AtmP, st.H, nil
	}
	pIdx, ok := plan.IndexOf(Unknown{Node: id, IsEnth: false})
	if !ok {
		// Excluded from this plan's free unknowns but not Atmosphere:
		// either a blocked-subgraph CV, or (transient snapshot) any
		// ControlVolume, whose (P,h) the caller has already materialized
		// into Context.
		p = ctx.FixedPressure[id]
		h = ctx.LaggedEnthalpy[id]
		if rec.Kind == net.KindControlVolume {
			if _, perr := pol.CreateState(policy.NodeID(id), p, h); perr != nil {
				return 0, 0, perr
			}
		}
		return p, h, nil
	}
	p = x[pIdx]
	if rec.Kind == net.KindControlVolume {
		hIdx, _ := plan.IndexOf(Unknown{Node: id, IsEnth: true})
		h = x[hIdx]
		if _, perr := pol.CreateState(policy.NodeID(id), p, h); perr != nil {
			return 0, 0, perr
		}
	} else {
		h = ctx.LaggedEnthalpy[id]
	}
	return p, h, nil
}

// Evaluate assembles R(x): per-node mass and (for ControlVolume only)
// energy residuals aggregated from every incident component's mass-flow
// law, per spec §4.D.
func Evaluate(n *net.Network, plan *Plan, x []float64, model thermo.Model, pol policy.Policy, ctx *Context) (*Result, error) {
	R := make([]float64, plan.NDim())
	mdots := make(map[net.CompID]float64, len(n.Comps))

	massAcc := make(map[net.NodeID]float64, len(n.Nodes))
	energyAcc := make(map[net.NodeID]float64, len(n.Nodes))
	inflowMass := make(map[net.NodeID]float64, len(n.Nodes))
	inflowEnergy := make(map[net.NodeID]float64, len(n.Nodes))

	portOf := func(id net.NodeID) (comp.PortState, error) {
		p, h, err := NodeState(n, plan, x, ctx, model, pol, id)
		if err != nil {
			return comp.PortState{}, err
		}
		return comp.PortState{P: p, H: h}, nil
	}

	for cid, c := range n.Comps {
		inletID, outletID := c.Ports()
		inletPort, err := portOf(net.NodeID(inletID))
		if err != nil {
			return nil, err
		}
		outletPort, err := portOf(net.NodeID(outletID))
		if err != nil {
			return nil, err
		}

		mdot, err := c.Mdot(model, inletPort, outletPort)
		if err != nil {
			return nil, err
		}
		mdots[net.CompID(cid)] = mdot

		hExitForward := inletPort.H
		if we, ok := c.(comp.WorkExtracting); ok {
			hExitForward, err = we.ExitEnthalpy(model, inletPort, mdot)
			if err != nil {
				return nil, err
			}
		}

		if mdot >= 0 {
			massAcc[net.NodeID(inletID)] -= mdot
			energyAcc[net.NodeID(inletID)] -= mdot * inletPort.H
			massAcc[net.NodeID(outletID)] += mdot
			energyAcc[net.NodeID(outletID)] += mdot * hExitForward
			inflowMass[net.NodeID(outletID)] += mdot
			inflowEnergy[net.NodeID(outletID)] += mdot * hExitForward
		} else {
			m := -mdot
			massAcc[net.NodeID(outletID)] -= m
			energyAcc[net.NodeID(outletID)] -= m * outletPort.H
			massAcc[net.NodeID(inletID)] += m
			energyAcc[net.NodeID(inletID)] += m * outletPort.H
			inflowMass[net.NodeID(inletID)] += m
			inflowEnergy[net.NodeID(inletID)] += m * outletPort.H
		}
	}

	for _, u := range plan.Unknowns {
		if u.IsEnth {
			continue // energy residual written at the node's pressure-index row + 1 below
		}
		rec := n.Node(u.Node)
		idx, _ := plan.IndexOf(u)
		R[idx] = massAcc[u.Node] - ctx.DMDt[u.Node]
		if rec.Kind == net.KindControlVolume {
			hIdx, _ := plan.IndexOf(Unknown{Node: u.Node, IsEnth: true})
			R[hIdx] = energyAcc[u.Node] - ctx.QExt[u.Node] - ctx.DUDt[u.Node]
		}
	}

	return &Result{
		R: R, Mdots: mdots,
		NetMassRate: massAcc, NetEnergyRate: energyAcc,
		InflowMass: inflowMass, InflowEnergy: inflowEnergy,
	}, nil
}

// RefreshJunctionLag updates ctx.LaggedEnthalpy for every Junction node
// to the flow-weighted inbound enthalpy observed in res (spec §3
// "Junction enthalpy is... a lagged value updated between outer
// iterations"). A junction with no inflow this iteration keeps its
// previous lag rather than collapsing to zero.
func RefreshJunctionLag(n *net.Network, ctx *Context, res *Result) {
	for _, node := range n.Nodes {
		if node.Kind != net.KindJunction {
			continue
		}
		m := res.InflowMass[node.ID]
		if m <= 0 {
			continue
		}
		ctx.LaggedEnthalpy[node.ID] = res.InflowEnergy[node.ID] / m
	}
}
