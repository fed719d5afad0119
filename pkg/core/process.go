// pkg/core/process.go
package core

import "strconv"

// ProcessID identifies the physics process that limited a step.
type ProcessID int

const (
	ProcessTransportation ProcessID = iota
	ProcessIonIoni
	ProcessMsc
	ProcessHIoni
	ProcessHBrems
	ProcessHPairProd
	ProcessCoulombScat
	ProcessEIoni
	ProcessEBrems
	ProcessPhotoelectric
	ProcessCompton
	ProcessConversion
	ProcessRayleigh
	ProcessAnnihilation
	ProcessMuIoni
	ProcessMuBrems
	ProcessMuPairProd
	ProcessUnknown
)

// processNames maps Geant4 process names to ProcessID.
var processNames = map[string]ProcessID{
	"Transportation": ProcessTransportation,
	"ionIoni":        ProcessIonIoni,
	"msc":            ProcessMsc,
	"hIoni":          ProcessHIoni,
	"hBrems":         ProcessHBrems,
	"hPairProd":      ProcessHPairProd,
	"CoulombScat":    ProcessCoulombScat,
	"eIoni":          ProcessEIoni,
	"eBrem":          ProcessEBrems,
	"phot":           ProcessPhotoelectric,
	"compt":          ProcessCompton,
	"conv":           ProcessConversion,
	"Rayl":           ProcessRayleigh,
	"annihil":        ProcessAnnihilation,
	"muIoni":         ProcessMuIoni,
	"muBrems":        ProcessMuBrems,
	"muPairProd":     ProcessMuPairProd,
}

// ProcessFromName returns the ProcessID for a Geant4 process name.
// Unrecognized names map to ProcessUnknown.
func ProcessFromName(name string) ProcessID {
	if id, ok := processNames[name]; ok {
		return id
	}
	return ProcessUnknown
}

// String returns the Geant4 process name.
func (p ProcessID) String() string {
	for name, id := range processNames {
		if id == p {
			return name
		}
	}
	return "ProcessID(" + strconv.Itoa(int(p)) + ")"
}
