package tilemap

import (
	"fmt"
	"strings"

	"sparsetile.ai/internal/mathx"
)

type HexOrientation uint8

const (
	HexPointy HexOrientation = iota
	HexFlat
)

func (o HexOrientation) String() string {
	switch o {
	case HexPointy:
		return "pointy"
	case HexFlat:
		return "flat"
	default:
		return fmt.Sprintf("orientation(%d)", uint8(o))
	}
}

func ParseHexOrientation(s string) (HexOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pointy":
		return HexPointy, nil
	case "flat":
		return HexFlat, nil
	default:
		return 0, fmt.Errorf("unknown hex orientation %q", s)
	}
}

// OffsetMode is the offset-coordinate convention used to store a hex map in a rectangle.
type OffsetMode uint8

const (
	OffsetOddRows OffsetMode = iota
	OffsetOddColumns
)

func (m OffsetMode) String() string {
	if m == OffsetOddColumns {
		return "odd_columns"
	}
	return "odd_rows"
}

// flatRotation is 30 degrees in radians.
const flatRotation = 0.52359878

// HexOffsetMode is fixed per orientation: pointy maps use odd rows, flat maps odd columns.
func HexOffsetMode(o HexOrientation) OffsetMode {
	if o == HexFlat {
		return OffsetOddColumns
	}
	return OffsetOddRows
}

// HexRotation is the world-space rotation (radians) for presenting the orientation.
// It has no effect on storage.
func HexRotation(o HexOrientation) float64 {
	if o == HexFlat {
		return flatRotation
	}
	return 0
}

// HexSettings converts offset-coordinate cells of a hex map. The chunk math is the
// same as the square grid; the orientation only selects the offset convention.
type HexSettings struct {
	ChunkSize   Size
	Orientation HexOrientation
}

func Hex(chunkW, chunkH int, o HexOrientation) HexSettings {
	return HexSettings{ChunkSize: Size{X: chunkW, Y: chunkH}, Orientation: o}
}

func (s HexSettings) Topology() Topology     { return TopologyHex }
func (s HexSettings) MaxChunkSize() Size     { return s.ChunkSize }
func (s HexSettings) OffsetMode() OffsetMode { return HexOffsetMode(s.Orientation) }
func (s HexSettings) Rotation() float64      { return HexRotation(s.Orientation) }

func (s HexSettings) ChunkPosition(c Cell) ChunkPos {
	return chunkPosition(c, s.ChunkSize)
}

func (s HexSettings) LocalPosition(c Cell) ChunkLocalPos {
	return localPosition(c, s.ChunkSize)
}

// Axial is a hex coordinate (q, r). Axial maps are routinely negative around the origin.
type Axial struct {
	Q, R int
}

// AxialDirections are the six neighbour steps in axial space.
var AxialDirections = [6]Axial{
	{+1, 0}, {+1, -1}, {0, -1}, {-1, 0}, {-1, +1}, {0, +1},
}

func (a Axial) Add(b Axial) Axial { return Axial{Q: a.Q + b.Q, R: a.R + b.R} }

// AxialToOffset converts an axial coordinate into the offset cell used for storage.
func AxialToOffset(a Axial, mode OffsetMode) Cell {
	if mode == OffsetOddColumns {
		return Cell{X: a.Q, Y: a.R + (a.Q-(a.Q&1))/2}
	}
	return Cell{X: a.Q + (a.R-(a.R&1))/2, Y: a.R}
}

// OffsetToAxial is the inverse of AxialToOffset.
func OffsetToAxial(c Cell, mode OffsetMode) Axial {
	if mode == OffsetOddColumns {
		return Axial{Q: c.X, R: c.Y - (c.X-(c.X&1))/2}
	}
	return Axial{Q: c.X - (c.Y-(c.Y&1))/2, R: c.Y}
}

// HexNeighbors returns the six offset cells adjacent to c.
func HexNeighbors(c Cell, mode OffsetMode) [6]Cell {
	a := OffsetToAxial(c, mode)
	var out [6]Cell
	for i, d := range AxialDirections {
		out[i] = AxialToOffset(a.Add(d), mode)
	}
	return out
}

// HexDistance is the number of hex steps between two offset cells.
func HexDistance(a, b Cell, mode OffsetMode) int {
	d := OffsetToAxial(a, mode)
	e := OffsetToAxial(b, mode)
	dq, dr := d.Q-e.Q, d.R-e.R
	return (mathx.AbsInt(dq) + mathx.AbsInt(dr) + mathx.AbsInt(dq+dr)) / 2
}
