package run

// TimingSummary is emitted once, on completion (spec §6 "Timing
// summary"): wall-clock breakdown plus mode-specific counters.
type TimingSummary struct {
	CompileS, BuildS, SolveS, SaveS, TotalS float64
	CacheHit                                bool
	InitStrategy                            string // "Strict" or "Relaxed"

	// Steady-mode counters.
	SteadyIterations   int
	SteadyResidualNorm float64

	// Transient-mode counters.
	TransientSteps     int
	CutbackRetries     int
	FallbackUses       int
	RealFluidAttempts  int
	RealFluidSuccesses int
	SurrogatePopulated int
}

// Trusted reports whether the run's diagnostic summary should be
// labeled trustworthy (spec §7 "trust-labeled diagnostic summary"): any
// fallback activation demotes the label, since the result then rests on
// at least one surrogate-approximated state.
func (t TimingSummary) Trusted() bool { return t.FallbackUses == 0 }
