// Package run orchestrates one end-to-end execution — steady or
// transient — over an already-assembled network, emitting progress
// events and a timing summary exactly as spec §6 describes. It is the
// thin coordination layer above solver/cv/integrator; it never reads or
// writes project files itself (the external project loader and run
// store are out of scope, modeled only as the ResultSink interface this
// package calls through). Grounded on gofem/fem.Domain's SolveSteady/
// SolveTransient driver split (fem.go, solver.go), generalized from a
// single FEM "stage" loop to this domain's steady-vs-transient request
// shape.
package run

import (
	"fmt"
	"hash"
	"hash/fnv"
)

// Mode discriminates the two run shapes (spec §6 "Run request"), kept
// as a closed sum type per design notes §9 rather than a dynamically
// keyed map.
type Mode interface {
	isMode()
	canonical() string
}

// SteadyMode runs the steady solver once.
type SteadyMode struct{}

func (SteadyMode) isMode() {}
func (SteadyMode) canonical() string { return "steady" }

// TransientMode advances the network from t=0 to TEndS in fixed steps
// of DtS; the integrator's internal cutback subdivision is invisible at
// this layer.
type TransientMode struct {
	DtS, TEndS float64
}

func (TransientMode) isMode() {}
func (m TransientMode) canonical() string {
	return fmt.Sprintf("transient;dt=%.17g;tend=%.17g", m.DtS, m.TEndS)
}

// Request is one run's invocation parameters.
type Request struct {
	Mode          Mode
	UseCache      bool
	SolverVersion string
}

// ID computes the deterministic run identity spec §6 requires: an
// FNV-1a hash of (system definition signature, mode parameters, solver
// version). systemSignature is supplied by the caller (typically
// inp.Project.Signature()) so this package stays independent of the
// project-file format. Identical inputs always hash identically —
// UseCache does not participate, since a cache hit must produce the
// same ID as the compute it is standing in for.
func (r Request) ID(systemSignature string) uint64 {
	h := fnv.New64a()
	writeField(h, systemSignature)
	writeField(h, r.Mode.canonical())
	writeField(h, r.SolverVersion)
	return h.Sum64()
}

func writeField(h hash.Hash64, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}
