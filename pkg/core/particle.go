// pkg/core/particle.go
package core

import "strconv"

// PDG codes of the particles that get a dedicated rendering family.
const (
	PDGGamma    = 22
	PDGElectron = 11
	PDGPositron = -11
	PDGMuMinus  = 13
)

// ParticleLabel returns the short display name of a PDG code.
func ParticleLabel(code int) string {
	switch code {
	case PDGGamma:
		return "gamma"
	case PDGElectron:
		return "e-"
	case PDGPositron:
		return "e+"
	case PDGMuMinus:
		return "mu-"
	default:
		return "pdg-" + strconv.Itoa(code)
	}
}
