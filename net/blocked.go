package net

// BlockedSubgraph identifies ControlVolume nodes whose boundary is
// already over-constrained — e.g. atmosphere on all sides — so they can
// be removed from the free-unknown vector and treated as boundary
// conditions instead (spec §4.D "Free unknowns").
//
// A ControlVolume is blocked when it has at least two incident
// components and every one of them connects, directly, only to
// Atmosphere nodes on its other port (a pass-through CV between two
// fixed reservoirs with no other connectivity has no free dynamics to
// solve for). A CV with a single component stays free.
func (n *Network) BlockedSubgraph() map[NodeID]bool {
	blocked := make(map[NodeID]bool)
	for _, node := range n.Nodes {
		if node.Kind != KindControlVolume {
			continue
		}
		if n.allNeighborsAtmosphere(node.ID) {
			blocked[node.ID] = true
		}
	}
	return blocked
}

func (n *Network) allNeighborsAtmosphere(id NodeID) bool {
	node := n.Node(id)
	if len(node.InComps)+len(node.OutComps) < 2 {
		return false
	}
	for _, cid := range node.InComps {
		other := n.otherEnd(cid, id)
		if n.Node(other).Kind != KindAtmosphere {
			return false
		}
	}
	for _, cid := range node.OutComps {
		other := n.otherEnd(cid, id)
		if n.Node(other).Kind != KindAtmosphere {
			return false
		}
	}
	return true
}

func (n *Network) otherEnd(cid CompID, from NodeID) NodeID {
	inlet, outlet := n.Comps[cid].Ports()
	if NodeID(inlet) == from {
		return NodeID(outlet)
	}
	return NodeID(inlet)
}

// FreeNodes returns the ControlVolume/Junction node IDs that remain in
// the free-unknown vector after pruning Atmosphere nodes (never
// unknowns, spec §3 invariant) and blocked subgraphs.
func (n *Network) FreeNodes() []NodeID {
	blocked := n.BlockedSubgraph()
	var free []NodeID
	for _, node := range n.Nodes {
		if node.Kind == KindAtmosphere {
			continue
		}
		if blocked[node.ID] {
			continue
		}
		free = append(free, node.ID)
	}
	return free
}
