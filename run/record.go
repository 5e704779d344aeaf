package run

import "github.com/dpedroso/thermoflow/net"

// NodeSample is one node's reported state at a time point (spec §6
// "Result record").
type NodeSample struct {
	Node         net.NodeID
	P, T, Rho, H float64
	Phase        string
}

// ComponentSample is one component's reported flow at a time point.
type ComponentSample struct {
	Comp   net.CompID
	Mdot   float64
	DeltaP float64
}

// LineVolumeSample is one LineVolume segment's own reported storage
// state at a time point (spec §4.C: a LineVolume stores mass and energy
// alongside CV nodes, so its (P,T,rho,h) is as much a result as a CV's).
type LineVolumeSample struct {
	Comp         net.CompID
	P, T, Rho, H float64
}

// ResultRecord is one time point's full snapshot, stored one-per-line
// by the caller-supplied ResultSink (spec §6 "record-per-line text
// format").
type ResultRecord struct {
	TimeS       float64
	Nodes       []NodeSample
	Components  []ComponentSample
	LineVolumes []LineVolumeSample `json:",omitempty"`
}

// ResultSink is the minimal interface the out-of-scope run store needs
// to implement; this package never touches a filesystem or database
// directly (spec §1 non-goals, §5 "terminal persistence write").
type ResultSink interface {
	WriteRecord(rec ResultRecord) error
	WriteManifest(runID uint64, req Request, summary TimingSummary) error
}
