package inp

import "github.com/dpedroso/thermoflow/thermoerr"

// InitMode is the closed sum of the four control-volume initialization
// variants spec §6 recognizes (exactly two independent variables
// specified per mode). Grounded on the run package's Mode interface
// (run/request.go), itself modeled on the same "unexported interface
// method, only this package's own concrete types implement it" pattern
// the design notes call for instead of a dynamically keyed map.
type InitMode interface {
	isInitMode()
	Kind() string
}

// InitPT specifies pressure and temperature; rho, h, M and U are
// derived (spec §6 table, "PT" row).
type InitPT struct {
	P, T float64
}

func (InitPT) isInitMode()  {}
func (InitPT) Kind() string { return "PT" }

// InitPH specifies pressure and enthalpy; rho, T, M and U are derived.
type InitPH struct {
	P, H float64
}

func (InitPH) isInitMode()  {}
func (InitPH) Kind() string { return "PH" }

// InitMassT specifies mass and temperature; pressure requires the
// iterative inversion spec §6 marks optional.
type InitMassT struct {
	M, T float64
}

func (InitMassT) isInitMode()  {}
func (InitMassT) Kind() string { return "mT" }

// InitMassH specifies mass and enthalpy; pressure again requires
// iterative inversion.
type InitMassH struct {
	M, H float64
}

func (InitMassH) isInitMode()  {}
func (InitMassH) Kind() string { return "mH" }

// initFields is the raw (possibly over- or under-specified) field set a
// project file's "init" object decodes into, before it is resolved into
// exactly one InitMode. Unset fields are nil so "was this field present"
// and "is this field zero" stay distinguishable.
type initFields struct {
	P *float64 `json:"p,omitempty"`
	T *float64 `json:"t,omitempty"`
	H *float64 `json:"h,omitempty"`
	M *float64 `json:"m,omitempty"`
}

// resolve picks the one InitMode the fields determine, or reports a
// validation error naming cvName and the offending field set when the
// count of specified fields is not exactly two (spec §6 "Over-
// constraint... is a validation error", spec §8 scenario 4).
func (f initFields) resolve(cvName string) (InitMode, error) {
	set := 0
	if f.P != nil {
		set++
	}
	if f.T != nil {
		set++
	}
	if f.H != nil {
		set++
	}
	if f.M != nil {
		set++
	}
	if set != 2 {
		return nil, thermoerr.New(thermoerr.KindValidation, "LoadingProject", cvName,
			"control volume %q initialization is over- or under-constrained: expected exactly 2 of {p,t,h,m}, got %d", cvName, set)
	}
	switch {
	case f.P != nil && f.T != nil:
		return InitPT{P: *f.P, T: *f.T}, nil
	case f.P != nil && f.H != nil:
		return InitPH{P: *f.P, H: *f.H}, nil
	case f.M != nil && f.T != nil:
		return InitMassT{M: *f.M, T: *f.T}, nil
	case f.M != nil && f.H != nil:
		return InitMassH{M: *f.M, H: *f.H}, nil
	default:
		return nil, thermoerr.New(thermoerr.KindValidation, "LoadingProject", cvName,
			"control volume %q initialization combines fields {p,t,h,m} inconsistently; recognized modes are PT, PH, mT, mH", cvName)
	}
}
