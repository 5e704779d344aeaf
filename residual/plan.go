// Package residual assembles nodal mass/energy conservation residuals
// from component mass-flow laws (spec §4.D), and caches the resulting
// free-variable layout as an ExecutionPlan keyed by a signature of
// active components and the boundary-condition map, so transient runs
// that do not change topology reuse the same plan across every RK
// stage. Grounded on gofem/fem.Domain's equation-numbering setup
// (Domain.SetStage assigning dof/equation numbers once per stage)
// translated from FEM dof bookkeeping to a free-pressure/enthalpy
// unknown layout.
package residual

import (
	"fmt"
	"strings"

	"github.com/dpedroso/thermoflow/net"
)

// Unknown identifies one scalar free unknown: a node's pressure, or (for
// ControlVolume nodes) its enthalpy.
type Unknown struct {
	Node   net.NodeID
	IsEnth bool // false => pressure unknown, true => enthalpy unknown
}

// Plan is the cached execution layout: which nodes are free, how many
// scalar unknowns each contributes, and the flat index each occupies in
// the solver's unknown vector x.
type Plan struct {
	Signature string
	Unknowns  []Unknown
	indexOf   map[Unknown]int
}

// NDim returns the total number of scalar unknowns.
func (p *Plan) NDim() int { return len(p.Unknowns) }

// IndexOf returns the flat index of u within x, and whether it is free.
func (p *Plan) IndexOf(u Unknown) (int, bool) {
	idx, ok := p.indexOf[u]
	return idx, ok
}

// BuildPlan derives the free-unknown layout from a network's current
// topology: ControlVolume nodes contribute [P,h], Junction nodes
// contribute [P] only (h is lagged, never a solver unknown, per spec
// §4.D "Free unknowns"), and both atmosphere nodes and blocked
// subgraphs (net.BlockedSubgraph) are excluded.
func BuildPlan(n *net.Network) *Plan {
	free := n.FreeNodes()
	p := &Plan{indexOf: make(map[Unknown]int)}
	for _, id := range free {
		rec := n.Node(id)
		pu := Unknown{Node: id, IsEnth: false}
		p.indexOf[pu] = len(p.Unknowns)
		p.Unknowns = append(p.Unknowns, pu)
		if rec.Kind == net.KindControlVolume {
			hu := Unknown{Node: id, IsEnth: true}
			p.indexOf[hu] = len(p.Unknowns)
			p.Unknowns = append(p.Unknowns, hu)
		}
	}
	p.Signature = signature(n, free)
	return p
}

// BuildTransientPlan derives the free-unknown layout used during a
// transient RK stage snapshot (spec §4.G step 1b): ControlVolume state
// is already materialized from (M,U) by the cv package before this call,
// so only Junction nodes remain free [P] unknowns — CVs are excluded
// here the same way Atmosphere always is, and their materialized (P,h)
// are supplied through Context.FixedPressure/LaggedEnthalpy instead.
func BuildTransientPlan(n *net.Network) *Plan {
	free := n.FreeNodes()
	p := &Plan{indexOf: make(map[Unknown]int)}
	for _, id := range free {
		rec := n.Node(id)
		if rec.Kind == net.KindControlVolume {
			continue
		}
		pu := Unknown{Node: id, IsEnth: false}
		p.indexOf[pu] = len(p.Unknowns)
		p.Unknowns = append(p.Unknowns, pu)
	}
	p.Signature = "transient;" + signature(n, free)
	return p
}

// signature derives a cache key from active components and the free-node
// set, so BuildPlan's caller can skip rebuilding when topology (and
// therefore the boundary-condition map) hasn't changed between RK
// stages of a transient run.
func signature(n *net.Network, free []net.NodeID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "nodes=%d;comps=%d;free=", len(n.Nodes), len(n.Comps))
	for _, id := range free {
		fmt.Fprintf(&b, "%d,", id)
	}
	return b.String()
}

// PlanCache owns the cached steady and transient Plans and rebuilds
// either only when the network's signature has changed, per spec §4.D
// "Execution plan": transient runs that do not change topology reuse
// the same plan across every RK stage and cutback substep instead of
// rebuilding it on every snapshot call.
type PlanCache struct {
	cached          *Plan
	cachedTransient *Plan
}

// Get returns the cached steady plan if its signature still matches n's
// current topology, otherwise builds and caches a fresh one.
func (c *PlanCache) Get(n *net.Network) *Plan {
	free := n.FreeNodes()
	sig := signature(n, free)
	if c.cached != nil && c.cached.Signature == sig {
		return c.cached
	}
	c.cached = BuildPlan(n)
	return c.cached
}

// GetTransient returns the cached transient (CV-excluded) plan if its
// signature still matches n's current topology, otherwise builds and
// caches a fresh one via BuildTransientPlan.
func (c *PlanCache) GetTransient(n *net.Network) *Plan {
	free := n.FreeNodes()
	sig := "transient;" + signature(n, free)
	if c.cachedTransient != nil && c.cachedTransient.Signature == sig {
		return c.cachedTransient
	}
	c.cachedTransient = BuildTransientPlan(n)
	return c.cachedTransient
}
