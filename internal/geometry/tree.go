package geometry

import "slices"

// CMSTopVolume is the top volume of the CMS detector in the full CMS GDML
// export.
const CMSTopVolume = "CMSE0x7f4a8f616d40"

// CMSHiddenVolumes are the beam line, forward and building volumes that are
// hidden in the CMS view.
var CMSHiddenVolumes = []string{
	"CMStoZDC0x7f4a9a757000",
	"ZDCtoFP4200x7f4a9a757180",
	"BEAM30x7f4a8f615040",
	"BEAM20x7f4a9a75ae00",
	"VCAL0x7f4a8f615540",
	"CastorF0x7f4a8f615f80",
	"CastorB0x7f4a8f616080",
	"TotemT20x7f4a8f615ac0",
	"OQUA0x7f4a8f616600",
	"BSC20x7f4a8f616740",
	"ZDC0x7f4a8f6168c0",
}

// Node is one placed volume.
type Node struct {
	Name     string  `json:"name"`
	Volume   string  `json:"volume"`
	Path     string  `json:"path"`
	Level    int     `json:"level"`
	Children []*Node `json:"-"`
}

// Tree is the volume hierarchy of a loaded geometry.
type Tree struct {
	Source  string
	Top     *Node
	Volumes int // distinct volume definitions
	Nodes   int // placed nodes, world included
}

// View is the part of the hierarchy a renderer shows.
type View struct {
	Top      string   `json:"top"`
	VisLevel int      `json:"visLevel"`
	Nodes    []string `json:"nodes"`
	Hidden   []string `json:"hidden,omitempty"`
}

// Visible returns the view of the whole world: every node from the world
// volume down to visLevel levels below it.
func (t *Tree) Visible(visLevel int) View {
	return t.viewFrom(t.Top, visLevel, nil)
}

// CMSView returns the view rooted at the CMS detector volume with the
// beam line and building volumes hidden. When the geometry has no CMS
// volume it returns the world view and false.
func (t *Tree) CMSView(visLevel int) (View, bool) {
	top := t.Find(CMSTopVolume)
	if top == nil {
		return t.Visible(visLevel), false
	}
	return t.viewFrom(top, visLevel, CMSHiddenVolumes), true
}

// Find returns the first node, in depth-first order, that places volume.
func (t *Tree) Find(volume string) *Node {
	var found *Node
	t.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Volume == volume {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits nodes depth-first. Returning false from fn skips the children
// of that node.
func (t *Tree) Walk(fn func(*Node) bool) {
	if t.Top != nil {
		walk(t.Top, fn)
	}
}

func walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

func (t *Tree) viewFrom(top *Node, visLevel int, hidden []string) View {
	if visLevel < 0 {
		visLevel = 0
	}
	v := View{Top: top.Path, VisLevel: visLevel, Nodes: []string{}}

	walk(top, func(n *Node) bool {
		if slices.Contains(hidden, n.Volume) {
			v.Hidden = append(v.Hidden, n.Path)
			return false
		}
		if n.Level-top.Level > visLevel {
			return false
		}
		v.Nodes = append(v.Nodes, n.Path)
		return true
	})
	return v
}
