package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wayfind/indoornav/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3DFromString parses a "x,y" or "x,y,z" string into a core.Position3D.
// A missing z component defaults to 0.
func Position3DFromString(coords string) (core.Position3D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	values := [3]float64{}
	for i := 0; i < len(coordsSplit) && i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[i]), 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		values[i] = v
	}
	return core.Position3D{X: values[0], Y: values[1], Z: values[2]}, nil
}

// PathLineString converts a path into a geometry on the ground plane.
// World X/Z become geometry X/Y and world height is carried as Z.
// An empty path, or one the geometry rejects such as a path whose corners
// all coincide, yields an empty LineString.
func PathLineString(p core.Path) geom.LineString {
	if len(p.Corners) < 2 {
		return geom.LineString{}
	}
	flatCoords := make([]float64, 0, len(p.Corners)*3)
	for _, c := range p.Corners {
		flatCoords = append(flatCoords, c.X, c.Z, c.Y)
	}
	seq := geom.NewSequence(flatCoords, geom.DimXYZ)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}
	}
	return ls
}

// PathLength returns the walking distance of a path on the ground plane.
func PathLength(p core.Path) float64 {
	if len(p.Corners) < 2 {
		return 0
	}
	return PathLineString(p).Length()
}
