package tilemap

import (
	"fmt"

	"sparsetile.ai/internal/mathx"
)

// Chunks is the registry of chunk handles for one tilemap, laid out as a rectangle
// of ceil(map / max chunk size) chunks on each axis.
type Chunks struct {
	handles      *Grid[Handle]
	maxChunkSize Size
}

func NewChunks(handles *Grid[Handle], maxChunkSize Size) *Chunks {
	checkChunkSize(maxChunkSize)
	return &Chunks{handles: handles, maxChunkSize: maxChunkSize}
}

// NewChunkHandleGrid builds a handle grid from nested rows. Rows must be rectangular.
func NewChunkHandleGrid(rows [][]Handle) *Grid[Handle] {
	return NewGridFromRows(rows)
}

// ChunkCountsFor returns how many chunks cover a map of the given size.
func ChunkCountsFor(mapSize, maxChunkSize Size) Size {
	return Size{
		X: mathx.CeilDiv(mapSize.X, maxChunkSize.X),
		Y: mathx.CeilDiv(mapSize.Y, maxChunkSize.Y),
	}
}

func (c *Chunks) Chunk(pos ChunkPos) (Handle, error) {
	h, ok := c.handles.Get(pos.X, pos.Y)
	if !ok {
		return 0, fmt.Errorf("%w: %s outside %s chunk grid", ErrInvalidChunkPosition, pos, c.handles.Size())
	}
	return h, nil
}

func (c *Chunks) ChunkCounts() Size      { return c.handles.Size() }
func (c *Chunks) MaxChunkSize() Size     { return c.maxChunkSize }
func (c *Chunks) Handles() *Grid[Handle] { return c.handles }
