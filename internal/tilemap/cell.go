package tilemap

import "fmt"

// Cell is the global address of one tile. Coordinates may be negative.
type Cell struct {
	X, Y int
}

func NewCell(x, y int) Cell { return Cell{X: x, Y: y} }

func (c Cell) Add(o Cell) Cell { return Cell{X: c.X + o.X, Y: c.Y + o.Y} }
func (c Cell) Sub(o Cell) Cell { return Cell{X: c.X - o.X, Y: c.Y - o.Y} }

func (c Cell) String() string { return fmt.Sprintf("cell(%d,%d)", c.X, c.Y) }

// ChunkPos addresses a chunk inside the chunk grid.
type ChunkPos struct {
	X, Y int
}

func NewChunkPos(x, y int) ChunkPos { return ChunkPos{X: x, Y: y} }

// Origin returns the cell at local (0,0) of the chunk for the given max chunk size.
func (p ChunkPos) Origin(chunkSize Size) Cell { return Cell{X: p.X * chunkSize.X, Y: p.Y * chunkSize.Y} }

func (p ChunkPos) String() string { return fmt.Sprintf("chunk(%d,%d)", p.X, p.Y) }

// ChunkLocalPos addresses a tile inside its owning chunk, in [0, chunk dimensions).
type ChunkLocalPos struct {
	X, Y int
}

func NewChunkLocalPos(x, y int) ChunkLocalPos { return ChunkLocalPos{X: x, Y: y} }

// Cell returns the global cell for this local position inside the chunk at pos.
func (l ChunkLocalPos) Cell(pos ChunkPos, chunkSize Size) Cell {
	return pos.Origin(chunkSize).Add(Cell{X: l.X, Y: l.Y})
}

func (l ChunkLocalPos) String() string { return fmt.Sprintf("local(%d,%d)", l.X, l.Y) }

// Size is a width (X) and height (Y) in tiles or chunks.
type Size struct {
	X, Y int
}

func NewSize(x, y int) Size { return Size{X: x, Y: y} }

func (s Size) Area() int { return s.X * s.Y }

func (s Size) Add(o Size) Size { return Size{X: s.X + o.X, Y: s.Y + o.Y} }
func (s Size) Mul(o Size) Size { return Size{X: s.X * o.X, Y: s.Y * o.Y} }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.X, s.Y) }
