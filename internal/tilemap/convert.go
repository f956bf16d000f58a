package tilemap

import "sparsetile.ai/internal/mathx"

type Topology string

const (
	TopologySquare Topology = "square"
	TopologyHex    Topology = "hex"
)

// Converter turns global cells into chunk positions and chunk-local positions.
// Implementations are small value types; Chunk and Tilemap are generic over them.
type Converter interface {
	Topology() Topology
	MaxChunkSize() Size
	ChunkPosition(c Cell) ChunkPos
	LocalPosition(c Cell) ChunkLocalPos
}

// chunkPosition floors so negative cells land in the chunk below/left of the origin.
func chunkPosition(c Cell, chunkSize Size) ChunkPos {
	return ChunkPos{
		X: mathx.FloorDiv(c.X, chunkSize.X),
		Y: mathx.FloorDiv(c.Y, chunkSize.Y),
	}
}

// localPosition is cell - chunkPosition*chunkSize, always in [0, chunkSize).
func localPosition(c Cell, chunkSize Size) ChunkLocalPos {
	return ChunkLocalPos{
		X: mathx.Mod(c.X, chunkSize.X),
		Y: mathx.Mod(c.Y, chunkSize.Y),
	}
}

func checkChunkSize(s Size) {
	if s.X <= 0 || s.Y <= 0 {
		violate(ErrInvalidChunkSize, "max chunk size %s", s)
	}
}

// SquareSettings converts cells on a square grid.
type SquareSettings struct {
	ChunkSize Size
}

func Square(chunkW, chunkH int) SquareSettings {
	return SquareSettings{ChunkSize: Size{X: chunkW, Y: chunkH}}
}

func (s SquareSettings) Topology() Topology { return TopologySquare }
func (s SquareSettings) MaxChunkSize() Size { return s.ChunkSize }

func (s SquareSettings) ChunkPosition(c Cell) ChunkPos {
	return chunkPosition(c, s.ChunkSize)
}

func (s SquareSettings) LocalPosition(c Cell) ChunkLocalPos {
	return localPosition(c, s.ChunkSize)
}
