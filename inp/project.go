// Package inp implements the project file: the external description of
// systems, nodes, components, compositions and per-CV initialization
// that, once loaded, drives one run.Execute call (spec §6 "Project
// file"). Grounded on gofem/inp.Simulation's ReadSim (sim.go): JSON
// struct tags decode directly into exported fields, defaults are filled
// in a SetDefault/PostProcess pass, and derived runtime objects (here: a
// *net.Network plus initial CV storage) are built in a second pass after
// decode, exactly as ReadSim builds o.MatModels/o.LiqMdl/o.GasMdl from
// the decoded o.Data/o.Regions.
package inp

import (
	"encoding/json"

	"github.com/cpmech/gosl/fun"
	"github.com/cpmech/gosl/io"
	"github.com/dpedroso/thermoflow/comp"
	"github.com/dpedroso/thermoflow/cv"
	"github.com/dpedroso/thermoflow/integrator"
	"github.com/dpedroso/thermoflow/net"
	"github.com/dpedroso/thermoflow/thermo"
	"github.com/dpedroso/thermoflow/thermoerr"
)

// NodeDef is one node's project-file encoding: Kind selects which of
// Volume/AtmP+AtmT/Init applies, mirroring inp.Region's single struct
// carrying fields only some element types use.
type NodeDef struct {
	Name   string      `json:"name"`
	Kind   string      `json:"kind"` // "junction", "cv", "atmosphere"
	Volume float64     `json:"volume,omitempty"`
	AtmP   float64     `json:"atm_p,omitempty"`
	AtmT   float64     `json:"atm_t,omitempty"`
	Init   *initFields `json:"init,omitempty"` // cv only
}

// ScheduleDef names a scheduled operation against a component, keyed the
// same way inp.EleCond pairs a Keys[] entry with a Funcs[] function name.
// Only SetValvePosition is recognized, and only to be rejected (spec §6,
// §7, §8 scenario 5): timed valve schedules are not implemented.
type ScheduleDef struct {
	Op   string `json:"op"`
	Func string `json:"func"`
}

// ComponentDef is one two-port component's project-file encoding. Prms
// follows the same fun.Prms name/value-list shape inp.Material.Prms and
// mdl/fluid.Model.Init use, rather than per-kind typed fields, so every
// component kind (spec §4.C) shares one decode path.
type ComponentDef struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"` // orifice, valve, pipe, pump, turbine, linevolume
	Inlet    string        `json:"inlet"`
	Outlet   string        `json:"outlet"`
	Prms     fun.Prms      `json:"prms"`
	Schedule []ScheduleDef `json:"schedule,omitempty"`
}

// Project holds one fully decoded project file.
type Project struct {
	Desc          string         `json:"desc"`
	SolverVersion string         `json:"solver_version"`
	Composition   CompositionDef `json:"composition"`
	Nodes         []NodeDef      `json:"nodes"`
	Components    []ComponentDef `json:"components"`
}

// ReadProject reads the project file at path and decodes its JSON, mirroring
// inp.ReadSim's io.ReadFile + json.Unmarshal + chk.Panic-on-failure
// shape, translated to return an error instead of panicking (spec §7:
// validation errors are surfaced to the caller, never panicked past it).
func ReadProject(path string) (*Project, error) {
	b, err := io.ReadFile(path)
	if err != nil {
		return nil, thermoerr.Wrap(thermoerr.KindIO, "LoadingProject", path, err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, thermoerr.Wrap(thermoerr.KindValidation, "LoadingProject", path, err)
	}
	return &p, nil
}

// prm looks up a named parameter in a fun.Prms list, returning def when
// absent — the same accessor shape LinearFluid.Init loops over inline,
// factored out here since every component kind needs it.
func prm(prms fun.Prms, name string, def float64) float64 {
	for _, p := range prms {
		if p.N == name {
			return p.V
		}
	}
	return def
}

// Signature returns a canonical string encoding of this project's system
// definition, suitable as the systemSignature argument to
// run.Request.ID (spec §6 "deterministic hash of (system definition,
// mode parameters, solver version)"). It deliberately only encodes the
// network shape and parameters, not SolverVersion, which run.Request
// folds in separately.
func (p *Project) Signature() string {
	b, err := json.Marshal(struct {
		Composition CompositionDef `json:"composition"`
		Nodes       []NodeDef      `json:"nodes"`
		Components  []ComponentDef `json:"components"`
	}{p.Composition, p.Nodes, p.Components})
	if err != nil {
		return p.Desc
	}
	return string(b)
}

// Validate checks every structural invariant spec §6/§7/§8 requires
// before any solving begins: unique/known node names referenced by every
// component, exactly-two-field CV initialization (checked during decode
// by initFields.resolve, re-verified here), and the blanket rejection of
// any component-level operating schedule (spec §8 scenario 5: "timed
// valve position schedules not supported").
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if seen[n.Name] {
			return thermoerr.New(thermoerr.KindValidation, "LoadingProject", n.Name, "duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
		if n.Kind == "cv" {
			if n.Init == nil {
				return thermoerr.New(thermoerr.KindValidation, "LoadingProject", n.Name, "control volume %q has no initialization", n.Name)
			}
			if _, err := n.Init.resolve(n.Name); err != nil {
				return err
			}
		}
	}
	for _, c := range p.Components {
		if !seen[c.Inlet] {
			return thermoerr.New(thermoerr.KindValidation, "LoadingProject", c.Name, "component %q references unknown inlet node %q", c.Name, c.Inlet)
		}
		if !seen[c.Outlet] {
			return thermoerr.New(thermoerr.KindValidation, "LoadingProject", c.Name, "component %q references unknown outlet node %q", c.Name, c.Outlet)
		}
		for _, sch := range c.Schedule {
			if sch.Op == "SetValvePosition" {
				return thermoerr.New(thermoerr.KindValidation, "LoadingProject", c.Name,
					"timed valve position schedules not supported: component %q", c.Name)
			}
			return thermoerr.New(thermoerr.KindValidation, "LoadingProject", c.Name,
				"unrecognized schedule operation %q on component %q", sch.Op, c.Name)
		}
	}
	return nil
}

// Build resolves this project into the runtime objects run.Input needs:
// the *net.Network, every ControlVolume's storage Volumes and initial
// (M,U) State under the CV init mode each specifies, and every
// LineVolume segment's initial (M,U) LineState seeded from its inlet
// node's fluid state. model must already be constructed for
// p.Composition's species (backend selection is an external concern per
// spec §1 non-goals); Build only queries it.
func (p *Project) Build(model thermo.Model) (*net.Network, integrator.Volumes, integrator.State, integrator.LineState, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}

	n := net.New()
	byName := make(map[string]net.NodeID, len(p.Nodes))
	vols := integrator.Volumes{}
	state := integrator.State{}
	cache := cv.NewCache()

	for _, nd := range p.Nodes {
		switch nd.Kind {
		case "junction":
			byName[nd.Name] = n.AddJunction(nd.Name)
		case "atmosphere":
			byName[nd.Name] = n.AddAtmosphere(nd.Name, nd.AtmP, nd.AtmT)
		case "cv":
			id := n.AddControlVolume(nd.Name, nd.Volume)
			byName[nd.Name] = id
			mode, err := nd.Init.resolve(nd.Name)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			m, u, err := initialStorage(model, p.Composition, nd.Volume, mode, cache, id)
			if err != nil {
				return nil, nil, nil, nil, thermoerr.Wrap(thermoerr.KindValidation, "LoadingProject", nd.Name, err)
			}
			vols[id] = nd.Volume
			state[id] = integrator.Storage{M: m, U: u}
		default:
			return nil, nil, nil, nil, thermoerr.New(thermoerr.KindValidation, "LoadingProject", nd.Name, "unrecognized node kind %q", nd.Kind)
		}
	}

	lineState := integrator.LineState{}
	for _, cd := range p.Components {
		c, err := buildComponent(cd, byName)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		cid, err := n.AddComponent(c)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if lv, ok := c.(*comp.LineVolume); ok {
			m, u, err := initialLineStorage(model, p.Composition, lv, n, state, vols)
			if err != nil {
				return nil, nil, nil, nil, thermoerr.Wrap(thermoerr.KindValidation, "LoadingProject", cd.Name, err)
			}
			lineState[cid] = integrator.Storage{M: m, U: u}
		}
	}

	if err := n.ValidateTopology(); err != nil {
		return nil, nil, nil, nil, err
	}
	return n, vols, state, lineState, nil
}

// initialLineStorage seeds a LineVolume segment's initial (M,U) from its
// inlet node's fluid state: a ControlVolume's already-resolved (ρ,h), an
// Atmosphere's fixed (P,T), or — for a Junction inlet, which carries no
// state of its own before the first solve — the composition's state at
// standard atmospheric conditions, a reasonable startup guess that the
// first snapshot's steady solve immediately corrects.
func initialLineStorage(model thermo.Model, compDef CompositionDef, lv *comp.LineVolume, n *net.Network, state integrator.State, vols integrator.Volumes) (m, u float64, err error) {
	inletID := net.NodeID(lv.InletID)
	rec := n.Node(inletID)

	var rho, h float64
	switch rec.Kind {
	case net.KindControlVolume:
		st := state[inletID]
		vol := vols[inletID]
		rho, h, err = cv.RhoH(st.M, st.U, vol)
		if err != nil {
			return 0, 0, err
		}
	case net.KindAtmosphere:
		fst, serr := model.State(thermo.PT, rec.AtmP, rec.AtmT)
		if serr != nil {
			return 0, 0, serr
		}
		rho, h = fst.Rho, fst.H
	default:
		fst, serr := model.State(thermo.PT, 101325, 300)
		if serr != nil {
			return 0, 0, serr
		}
		rho, h = fst.Rho, fst.H
	}

	m = rho * lv.Vol
	return m, m * h, nil
}

// buildComponent dispatches on Kind to build the concrete comp.Component,
// pulling geometry/coefficients out of Prms (spec §4.C's closed set:
// Orifice, Valve, Pipe, Pump, Turbine, LineVolume).
func buildComponent(cd ComponentDef, byName map[string]net.NodeID) (comp.Component, error) {
	inlet := comp.NodeID(byName[cd.Inlet])
	outlet := comp.NodeID(byName[cd.Outlet])
	switch cd.Kind {
	case "orifice":
		return &comp.Orifice{InletID: inlet, OutletID: outlet, Cd: prm(cd.Prms, "Cd", 0.6), Area: prm(cd.Prms, "Area", 0)}, nil
	case "valve":
		return &comp.Valve{InletID: inlet, OutletID: outlet, Cd: prm(cd.Prms, "Cd", 0.6),
			AreaMax: prm(cd.Prms, "AreaMax", 0), Position: prm(cd.Prms, "Position", 1)}, nil
	case "pipe":
		return &comp.Pipe{InletID: inlet, OutletID: outlet, Friction: prm(cd.Prms, "Friction", 0.02),
			Length: prm(cd.Prms, "Length", 1), Diameter: prm(cd.Prms, "Diameter", 0.05)}, nil
	case "pump":
		return &comp.Pump{InletID: inlet, OutletID: outlet, POut: prm(cd.Prms, "POut", 0),
			Efficiency: prm(cd.Prms, "Efficiency", 1), CommandedMdot: prm(cd.Prms, "Mdot", 0)}, nil
	case "turbine":
		return &comp.Turbine{InletID: inlet, OutletID: outlet, POut: prm(cd.Prms, "POut", 0),
			Efficiency: prm(cd.Prms, "Efficiency", 1), CommandedMdot: prm(cd.Prms, "Mdot", 0)}, nil
	case "linevolume":
		return &comp.LineVolume{InletID: inlet, OutletID: outlet, Vol: prm(cd.Prms, "Volume", 0),
			Cd: prm(cd.Prms, "Cd", 0), Area: prm(cd.Prms, "Area", 0)}, nil
	default:
		return nil, thermoerr.New(thermoerr.KindValidation, "LoadingProject", cd.Name, "unrecognized component kind %q", cd.Kind)
	}
}

// initialStorage derives (M, U) for one CV from its resolved InitMode,
// per spec §6's table: PT and PH query the model directly; mT queries
// the RhoT input pair; mH falls back to the same ρ,h→P boundary
// inversion the cv package itself uses (cv.Cache.Boundary), since no
// direct (ρ,h) input pair exists on the Model interface.
func initialStorage(model thermo.Model, compDef CompositionDef, vol float64, mode InitMode, cache *cv.Cache, id net.NodeID) (m, u float64, err error) {
	composition, err := compDef.Build()
	if err != nil {
		return 0, 0, err
	}
	switch im := mode.(type) {
	case InitPT:
		st, err := model.State(thermo.PT, im.P, im.T)
		if err != nil {
			return 0, 0, err
		}
		m = st.Rho * vol
		return m, m * st.H, nil
	case InitPH:
		st, err := model.State(thermo.PH, im.P, im.H)
		if err != nil {
			return 0, 0, err
		}
		m = st.Rho * vol
		return m, m * im.H, nil
	case InitMassT:
		rho := im.M / vol
		st, err := model.State(thermo.RhoT, rho, im.T)
		if err != nil {
			return 0, 0, err
		}
		return im.M, im.M * st.H, nil
	case InitMassH:
		rho := im.M / vol
		if _, err := cache.Boundary(id, model, rho, im.H, composition, 0, thermo.DefaultInversionConfig()); err != nil {
			return 0, 0, err
		}
		return im.M, im.M * im.H, nil
	default:
		return 0, 0, thermoerr.New(thermoerr.KindContractViolation, "initialStorage", "", "unrecognized InitMode %T", mode)
	}
}
