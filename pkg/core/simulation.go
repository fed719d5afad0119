// pkg/core/simulation.go
package core

// Vec3 is a point or direction in the detector frame.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale returns v with every component multiplied by f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// StepRecord is one row of a flat step table.
// Rows are not guaranteed to be stored grouped by track or in step order.
type StepRecord struct {
	EventID   int
	TrackID   int
	StepIndex int // per-track step counter, used as the minor sort key
	Particle  int // PDG code
	Process   ProcessID
	PrePos    Vec3
	PostPos   Vec3
}

// Step is one recorded step of an embedded Track.
type Step struct {
	Process       ProcessID `json:"process_id"`
	KineticEnergy float64   `json:"kinetic_energy"` // [MeV]
	EnergyLoss    float64   `json:"energy_loss"`    // [MeV]
	Direction     Vec3      `json:"direction"`
	Position      Vec3      `json:"position"`    // [cm]
	GlobalTime    float64   `json:"global_time"` // [s]
}

// Track is the full trajectory of one particle inside an EventRecord.
// Steps are stored in track order.
type Track struct {
	Particle         int     `json:"pdg"`
	ID               int     `json:"id"`
	ParentID         int     `json:"parent_id"`
	Length           float64 `json:"length"`
	EnergyDep        float64 `json:"energy_dep"`
	VertexEnergy     float64 `json:"vertex_energy"`
	VertexGlobalTime float64 `json:"vertex_global_time"`
	VertexDirection  Vec3    `json:"vertex_direction"`
	VertexPosition   Vec3    `json:"vertex_position"`
	NumSteps         uint64  `json:"number_of_steps"`
	Steps            []Step  `json:"steps"`
}

// EventRecord is one simulated event with its tracks embedded.
type EventRecord struct {
	ID          int
	Primaries   []Track
	Secondaries []Track
}
