// Package net implements the Network data model (spec §3): a directed
// graph of Junction/ControlVolume/Atmosphere nodes connected by two-port
// components, stored as an arena with integer indices rather than a
// pointer graph, per the design notes' "Graph representation" guidance.
// Grounded on gofem/fem.Domain's Vid2node []*Node / Cid2elem []ele.Element
// arena pattern, translated from FEM mesh vertices/cells to flat
// network nodes/components with parallel incidence lists.
package net

import (
	"fmt"

	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// NodeID and CompID index into the Network's arenas.
type NodeID int
type CompID int

// NodeKind discriminates the three node variants.
type NodeKind int

const (
	KindJunction NodeKind = iota
	KindControlVolume
	KindAtmosphere
)

// NodeRecord holds a node's static and per-snapshot data.
type NodeRecord struct {
	ID   NodeID
	Kind NodeKind
	Name string

	// ControlVolume-only
	Volume float64 // m3

	// Atmosphere-only: fixed boundary values, never solver unknowns.
	AtmP, AtmT float64

	// incidence: parallel index lists instead of pointer back-references
	InComps  []CompID
	OutComps []CompID
}

// Network is the arena-backed directed graph.
type Network struct {
	Nodes []NodeRecord
	Comps []comp.Component
}

// New returns an empty network.
func New() *Network { return &Network{} }

// AddJunction appends a zero-storage junction node and returns its ID.
func (n *Network) AddJunction(name string) NodeID {
	id := NodeID(len(n.Nodes))
	n.Nodes = append(n.Nodes, NodeRecord{ID: id, Kind: KindJunction, Name: name})
	return id
}

// AddControlVolume appends a finite-volume node and returns its ID.
func (n *Network) AddControlVolume(name string, volume float64) NodeID {
	id := NodeID(len(n.Nodes))
	n.Nodes = append(n.Nodes, NodeRecord{ID: id, Kind: KindControlVolume, Name: name, Volume: volume})
	return id
}

// AddAtmosphere appends an infinite-reservoir node and returns its ID.
func (n *Network) AddAtmosphere(name string, p, t float64) NodeID {
	id := NodeID(len(n.Nodes))
	n.Nodes = append(n.Nodes, NodeRecord{ID: id, Kind: KindAtmosphere, Name: name, AtmP: p, AtmT: t})
	return id
}

// AddComponent registers a component and wires its incidence into both
// endpoint nodes' parallel index lists.
func (n *Network) AddComponent(c comp.Component) (CompID, error) {
	inlet, outlet := c.Ports()
	if int(inlet) < 0 || int(inlet) >= len(n.Nodes) {
		return 0, thermoerr.New(thermoerr.KindContractViolation, "AddComponent", fmt.Sprint(inlet), "inlet node id out of range")
	}
	if int(outlet) < 0 || int(outlet) >= len(n.Nodes) {
		return 0, thermoerr.New(thermoerr.KindContractViolation, "AddComponent", fmt.Sprint(outlet), "outlet node id out of range")
	}
	id := CompID(len(n.Comps))
	n.Comps = append(n.Comps, c)
	n.Nodes[inlet].OutComps = append(n.Nodes[inlet].OutComps, id)
	n.Nodes[outlet].InComps = append(n.Nodes[outlet].InComps, id)
	return id, nil
}

// Node returns the record for id.
func (n *Network) Node(id NodeID) *NodeRecord { return &n.Nodes[id] }

// Component returns the component for id.
func (n *Network) Component(id CompID) comp.Component { return n.Comps[id] }

// ValidateTopology checks the data-model invariant that every
// non-atmosphere node has at least one incident component (no dangling
// storage), a contract violation otherwise.
func (n *Network) ValidateTopology() error {
	for _, node := range n.Nodes {
		if node.Kind == KindAtmosphere {
			continue
		}
		if len(node.InComps) == 0 && len(node.OutComps) == 0 {
			return thermoerr.New(thermoerr.KindContractViolation, "ValidateTopology", node.Name,
				"node has no incident components (dangling storage)")
		}
	}
	return nil
}
