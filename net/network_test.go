package net

import (
	"testing"

	"github.com/dpedroso/thermoflow/comp"
)

func TestAtmosphereNeverInFreeNodes(tst *testing.T) {
	n := New()
	atmUp := n.AddAtmosphere("atm-up", 200000, 300)
	atmDn := n.AddAtmosphere("atm-dn", 100000, 300)
	_, err := n.AddComponent(&comp.Orifice{InletID: comp.NodeID(atmUp), OutletID: comp.NodeID(atmDn), Cd: 0.65, Area: 1e-4})
	if err != nil {
		tst.Errorf("AddComponent: %v\n", err)
		return
	}

	for _, id := range n.FreeNodes() {
		if n.Node(id).Kind == KindAtmosphere {
			tst.Errorf("atmosphere node %d present in free-unknown vector\n", id)
		}
	}
}

func TestDanglingStorageRejected(tst *testing.T) {
	n := New()
	n.AddControlVolume("cv-lonely", 0.05)
	if err := n.ValidateTopology(); err == nil {
		tst.Errorf("expected dangling-storage contract violation\n")
	}
}

func TestBlockedSubgraphBetweenTwoAtmospheres(tst *testing.T) {
	n := New()
	atmUp := n.AddAtmosphere("atm-up", 200000, 300)
	cv := n.AddControlVolume("cv", 0.01)
	atmDn := n.AddAtmosphere("atm-dn", 100000, 300)
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(atmUp), OutletID: comp.NodeID(cv), Cd: 0.65, Area: 1e-4})
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cv), OutletID: comp.NodeID(atmDn), Cd: 0.65, Area: 1e-4})

	blocked := n.BlockedSubgraph()
	if !blocked[cv] {
		tst.Errorf("expected cv sandwiched between two atmospheres to be blocked\n")
	}
}

func TestUnblockedCVWithJunctionNeighbor(tst *testing.T) {
	n := New()
	atmUp := n.AddAtmosphere("atm-up", 200000, 300)
	cv := n.AddControlVolume("cv", 0.01)
	j := n.AddJunction("j")
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(atmUp), OutletID: comp.NodeID(cv), Cd: 0.65, Area: 1e-4})
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cv), OutletID: comp.NodeID(j), Cd: 0.65, Area: 1e-4})

	blocked := n.BlockedSubgraph()
	if blocked[cv] {
		tst.Errorf("cv adjacent to a junction must not be blocked\n")
	}
}
