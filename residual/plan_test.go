package residual

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/net"
)

func TestBuildTransientPlanExcludesControlVolumes(tst *testing.T) {
	n := net.New()
	up := n.AddAtmosphere("up", 200000, 300)
	cv := n.AddControlVolume("cv", 0.02)
	j := n.AddJunction("j")
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(up), OutletID: comp.NodeID(cv), Cd: 0.65, Area: 1e-4})
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cv), OutletID: comp.NodeID(j), Cd: 0.65, Area: 1e-4})

	plan := BuildTransientPlan(n)
	chk.IntAssert(plan.NDim(), 1)
	if _, ok := plan.IndexOf(Unknown{Node: cv, IsEnth: false}); ok {
		tst.Errorf("control volume must not contribute a free unknown in a transient plan\n")
	}
	if _, ok := plan.IndexOf(Unknown{Node: j, IsEnth: false}); !ok {
		tst.Errorf("junction pressure must remain free\n")
	}
}

func TestBuildPlanStillFreesControlVolumesForSteadySolve(tst *testing.T) {
	n := net.New()
	up := n.AddAtmosphere("up", 200000, 300)
	cv := n.AddControlVolume("cv", 0.02)
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(up), OutletID: comp.NodeID(cv), Cd: 0.65, Area: 1e-4})

	plan := BuildPlan(n)
	chk.IntAssert(plan.NDim(), 2)
}

func TestPlanCacheReusesPlanUntilTopologyChanges(tst *testing.T) {
	n := net.New()
	up := n.AddAtmosphere("up", 200000, 300)
	cv := n.AddControlVolume("cv", 0.02)
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(up), OutletID: comp.NodeID(cv), Cd: 0.65, Area: 1e-4})

	cache := &PlanCache{}
	first := cache.Get(n)
	second := cache.Get(n)
	if first != second {
		tst.Errorf("expected the cached steady plan to be reused across calls with unchanged topology\n")
	}

	firstTransient := cache.GetTransient(n)
	secondTransient := cache.GetTransient(n)
	if firstTransient != secondTransient {
		tst.Errorf("expected the cached transient plan to be reused across calls with unchanged topology\n")
	}
	if firstTransient == first {
		tst.Errorf("expected the steady and transient plans to be cached independently\n")
	}

	j := n.AddJunction("j")
	n.AddComponent(&comp.Orifice{InletID: comp.NodeID(cv), OutletID: comp.NodeID(j), Cd: 0.65, Area: 1e-4})
	third := cache.Get(n)
	if third == first {
		tst.Errorf("expected a topology change to invalidate the cached plan\n")
	}
}
