package track

import (
	"image/color"

	"github.com/evdisplay/evd/pkg/core"
)

// Style families.
const (
	FamilyGamma    = "gamma"
	FamilyElectron = "electron"
	FamilyPositron = "positron"
	FamilyMuon     = "muon"
	FamilyUnknown  = "unknown"
)

var (
	colorGreen  = color.RGBA{R: 0x00, G: 0x99, B: 0x00, A: 0xff}
	colorAzure  = color.RGBA{R: 0x33, G: 0x99, B: 0xff, A: 0xff}
	colorRed    = color.RGBA{R: 0x99, G: 0x00, B: 0x00, A: 0xff}
	colorOrange = color.RGBA{R: 0xff, G: 0x99, B: 0x00, A: 0xff}
	colorGray   = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
)

// DefaultStyle is the style of every particle without a dedicated family.
// Step points are never drawn for it.
var DefaultStyle = core.Style{Family: FamilyUnknown, Color: colorGray}

// Classify maps a PDG code to its rendering style.
func Classify(code int, showPoints bool) core.Style {
	switch code {
	case core.PDGGamma:
		return core.Style{Family: FamilyGamma, Color: colorGreen, ShowPoints: showPoints}
	case core.PDGElectron:
		return core.Style{Family: FamilyElectron, Color: colorAzure, ShowPoints: showPoints}
	case core.PDGPositron:
		return core.Style{Family: FamilyPositron, Color: colorRed, ShowPoints: showPoints}
	case core.PDGMuMinus:
		return core.Style{Family: FamilyMuon, Color: colorOrange, ShowPoints: showPoints}
	default:
		return DefaultStyle
	}
}
