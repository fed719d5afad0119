package geo

import (
	"github.com/evdisplay/evd/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Point converts a core.Vec3 to a 3D geom.Point.
func Point(v core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Z:    v.Z,
		Type: geom.DimXYZ,
	})
}

// LineString converts track points to a 3D geom.LineString. Fewer than two
// points give an empty LineString.
func LineString(points []core.Vec3) geom.LineString {
	if len(points) < 2 {
		return geom.NewLineString(geom.NewSequence(nil, geom.DimXYZ))
	}
	coords := make([]float64, 0, len(points)*3)
	for _, p := range points {
		coords = append(coords, p.X, p.Y, p.Z)
	}
	seq := geom.NewSequence(coords, geom.DimXYZ)
	return geom.NewLineString(seq)
}

// WKT returns the well-known text of a track: a POINT Z for a vertex-only
// track, otherwise a LINESTRING Z.
func WKT(points []core.Vec3) string {
	if len(points) == 1 {
		return Point(points[0]).AsText()
	}
	return LineString(points).AsText()
}

// FormatPolyline converts track points to JSON coordinate triples.
func FormatPolyline(points []core.Vec3) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return out
}
