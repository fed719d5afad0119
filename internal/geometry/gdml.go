// Package geometry loads the volume hierarchy of a GDML detector description
// and derives the node lists a renderer shows. Solids, materials and
// placements are not read.
package geometry

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNoWorld is returned when the setup section names no world volume.
	ErrNoWorld = errors.New("gdml: no world volume")
	// ErrUnknownVolume is returned when a placement references a volume that
	// is not defined.
	ErrUnknownVolume = errors.New("gdml: unknown volume")
	// ErrCycle is returned when a volume contains itself.
	ErrCycle = errors.New("gdml: volume hierarchy has a cycle")
)

type gdmlDoc struct {
	XMLName    xml.Name     `xml:"gdml"`
	Volumes    []gdmlVolume `xml:"structure>volume"`
	Assemblies []gdmlVolume `xml:"structure>assembly"`
	Setups     []gdmlSetup  `xml:"setup"`
}

type gdmlVolume struct {
	Name     string        `xml:"name,attr"`
	Physvols []gdmlPhysvol `xml:"physvol"`
}

type gdmlPhysvol struct {
	Name      string `xml:"name,attr"`
	VolumeRef struct {
		Ref string `xml:"ref,attr"`
	} `xml:"volumeref"`
}

type gdmlSetup struct {
	Name  string `xml:"name,attr"`
	World struct {
		Ref string `xml:"ref,attr"`
	} `xml:"world"`
}

// Load reads the GDML file at path.
func Load(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geometry: %w", err)
	}
	defer f.Close()

	tree, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tree.Source = path
	return tree, nil
}

// Parse reads a GDML document.
func Parse(r io.Reader) (*Tree, error) {
	var doc gdmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("gdml: %w", err)
	}

	volumes := make(map[string]gdmlVolume, len(doc.Volumes)+len(doc.Assemblies))
	for _, v := range doc.Volumes {
		volumes[v.Name] = v
	}
	for _, v := range doc.Assemblies {
		volumes[v.Name] = v
	}

	var world string
	for _, s := range doc.Setups {
		if s.World.Ref != "" {
			world = s.World.Ref
			break
		}
	}
	if world == "" {
		return nil, ErrNoWorld
	}

	b := builder{volumes: volumes, open: map[string]bool{}}
	top, err := b.node(world, world, "", 0)
	if err != nil {
		return nil, err
	}

	return &Tree{
		Top:     top,
		Volumes: len(volumes),
		Nodes:   b.count,
	}, nil
}

type builder struct {
	volumes map[string]gdmlVolume
	open    map[string]bool
	count   int
}

func (b *builder) node(name, volume, parent string, level int) (*Node, error) {
	v, ok := b.volumes[volume]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVolume, volume)
	}
	if b.open[volume] {
		return nil, fmt.Errorf("%w: %q", ErrCycle, volume)
	}
	b.open[volume] = true
	defer delete(b.open, volume)

	path := name
	if parent != "" {
		path = parent + "/" + name
	}

	n := &Node{Name: name, Volume: volume, Path: path, Level: level}
	b.count++
	for _, pv := range v.Physvols {
		childName := pv.Name
		if childName == "" {
			childName = pv.VolumeRef.Ref
		}
		child, err := b.node(childName, pv.VolumeRef.Ref, path, level+1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
