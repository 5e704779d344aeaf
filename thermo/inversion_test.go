package thermo

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

func TestInvertRhoHDirectRecoversDensity(tst *testing.T) {
	comp := NewPure(N2)
	m := NewLinearFluid(comp, 1039, 300, 311000)

	rhoTarget := 33.5 // kg/m3, plausible for N2 near 3 MPa/300K
	tKnown := 300.0
	st0, err := m.State(RhoT, rhoTarget, tKnown)
	if err != nil {
		tst.Errorf("seed state: %v\n", err)
		return
	}
	hTarget := st0.H

	p, st, err := InvertRhoHDirect(m, rhoTarget, hTarget, comp, 0, DefaultInversionConfig())
	if err != nil {
		tst.Errorf("InvertRhoHDirect failed: %v\n", err)
		return
	}
	if p <= 0 {
		tst.Errorf("expected positive pressure, got %v\n", p)
		return
	}
	chk.Scalar(tst, "rho", 1e-5*rhoTarget, st.Rho, rhoTarget)
}

func TestInvertRhoHDirectWithHint(tst *testing.T) {
	comp := NewPure(N2)
	m := NewLinearFluid(comp, 1039, 300, 311000)

	rhoTarget, tKnown := 33.5, 320.0
	st0, _ := m.State(RhoT, rhoTarget, tKnown)

	_, st, err := InvertRhoHDirect(m, rhoTarget, st0.H, comp, st0.P, DefaultInversionConfig())
	if err != nil {
		tst.Errorf("InvertRhoHDirect with hint failed: %v\n", err)
		return
	}
	chk.Scalar(tst, "T", 1e-3, st.T, tKnown)
}

func TestInvertRhoHDirectOutOfRangeBracket(tst *testing.T) {
	comp := NewPure(N2)
	m := NewLinearFluid(comp, 1039, 300, 311000)

	cfg := DefaultInversionConfig()
	cfg.TLo, cfg.THi = 290, 310 // too narrow to bracket a far-off target, no expansion
	cfg.Expansions = 0

	_, _, err := InvertRhoHDirect(m, 33.5, 5_000_000, comp, 0, cfg)
	if err == nil {
		tst.Errorf("expected out-of-range bracket error\n")
	}
}

func TestCompositionMixtureFractionValidation(tst *testing.T) {
	_, err := NewMixture([]Fraction{{N2, 0.79}, {O2, 0.21}}, true)
	if err != nil {
		tst.Errorf("valid mixture rejected: %v\n", err)
		return
	}
	_, err = NewMixture([]Fraction{{N2, 0.79}, {O2, 0.25}}, true)
	if err == nil {
		tst.Errorf("expected fraction-sum contract violation to be rejected\n")
	}
}

func TestRealFluidSingleInstantiationPerCall(tst *testing.T) {
	fake := &countingBackend{}
	comp := NewPure(N2)
	rf := NewRealFluid("fake-eos", fake, comp)

	if _, err := rf.State(PT, 200000, 300); err != nil {
		tst.Errorf("state failed: %v\n", err)
		return
	}
	if _, err := rf.State(PT, 200000, 300); err != nil {
		tst.Errorf("state failed: %v\n", err)
		return
	}
	chk.IntAssert(fake.queries, 1)
}

type countingBackend struct {
	queries int
}

func (b *countingBackend) Query(pair InputPair, a, c float64, comp Composition) (BackendResult, error) {
	b.queries++
	return BackendResult{P: a, T: c, Rho: a / (287 * c), H: 1005 * c, Cp: 1005, Cv: 718}, nil
}

func (b *countingBackend) BatchQuery(pair InputPair, a, c float64, comp Composition) (PropertyPack, error) {
	return PropertyPack{}, ErrNotBatched
}
