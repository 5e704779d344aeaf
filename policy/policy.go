// Package policy implements the ThermoStatePolicy fallback layer (spec
// §4.B): Strict delegates straight to the fluid model, while the
// surrogate-backed Transient variant interposes a per-node frozen-
// property surrogate when the real-fluid backend rejects a query.
// Grounded on gofem's two-variant model-interface pattern (e.g.
// mdl/solid.Model vs. driver test doubles) generalized to dynamic
// dispatch over a state-creation contract instead of a constitutive law.
package policy

import (
	"math"

	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// NodeID identifies the node a create-state request targets; kept as a
// plain int to match the net package's arena-indexed nodes.
type NodeID int

// Origin tags which path produced a returned state.
type Origin int

const (
	OriginRealFluid Origin = iota
	OriginFallback
)

// Result wraps a created state with its origin, so callers (and the
// diagnostic summary) can tell a real-fluid hit from a fallback.
type Result struct {
	State  *thermo.State
	Origin Origin
}

// Stats mirrors spec §4.B's observability counters.
type Stats struct {
	RealFluidAttempts  int
	RealFluidSuccesses int
	SurrogatePopulated int
	FallbackActivations int
}

// Policy is the ThermoStatePolicy contract.
type Policy interface {
	// CreateState resolves a (P,h) request at node id, trying real-fluid
	// first and falling back to a surrogate when available.
	CreateState(node NodeID, p, h float64) (Result, error)

	// Snapshot returns the current observability counters.
	Snapshot() Stats
}

// Strict directly delegates to the fluid model; failures propagate
// untouched. cmd/thermoflow's choosePolicy selects it for topologies
// with no ControlVolume; any CV-bearing topology gets SurrogateBacked.
type Strict struct {
	Model thermo.Model
	stats Stats
}

func NewStrict(m thermo.Model) *Strict { return &Strict{Model: m} }

func (o *Strict) CreateState(node NodeID, p, h float64) (Result, error) {
	o.stats.RealFluidAttempts++
	st, err := o.Model.State(thermo.PH, p, h)
	if err != nil {
		return Result{}, thermoerr.Wrap(thermoerr.KindOutOfRange, "CreateState", "", err)
	}
	o.stats.RealFluidSuccesses++
	return Result{State: st, Origin: OriginRealFluid}, nil
}

func (o *Strict) Snapshot() Stats { return o.stats }

// deviationPct returns max(|Δp/p|, |Δh/h|) as a fraction (0.05 == 5%).
func deviationPct(pRef, hRef, p, h float64) float64 {
	dp := 0.0
	if pRef != 0 {
		dp = math.Abs((p - pRef) / pRef)
	}
	dh := 0.0
	if hRef != 0 {
		dh = math.Abs((h - hRef) / hRef)
	}
	if dp > dh {
		return dp
	}
	return dh
}
