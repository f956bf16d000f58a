package tilemap

// Tilemap owns a chunk registry and the map-level conversion settings.
type Tilemap[C Converter] struct {
	chunks    *Chunks
	converter C
}

func NewTilemap[C Converter](chunks *Chunks, conv C) *Tilemap[C] {
	return &Tilemap[C]{chunks: chunks, converter: conv}
}

func (t *Tilemap[C]) Chunks() *Chunks    { return t.chunks }
func (t *Tilemap[C]) Converter() C       { return t.converter }
func (t *Tilemap[C]) MaxChunkSize() Size { return t.chunks.MaxChunkSize() }

// Chunk returns the handle stored at pos.
func (t *Tilemap[C]) Chunk(pos ChunkPos) (Handle, error) {
	return t.chunks.Chunk(pos)
}

// ChunkForCell resolves the cell with the map's converter and returns the owning chunk handle.
func (t *Tilemap[C]) ChunkForCell(c Cell) (Handle, ChunkPos, error) {
	pos := t.converter.ChunkPosition(c)
	h, err := t.chunks.Chunk(pos)
	return h, pos, err
}
