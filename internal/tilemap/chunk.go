package tilemap

import "fmt"

// LayerData is the payload of one chunk layer at construction time.
type LayerData[T any] struct {
	rows   [][]T
	sparse map[ChunkLocalPos]T
	kind   StorageKind
}

// DenseData wraps rows[y][x] of a dense layer.
func DenseData[T any](rows [][]T) LayerData[T] {
	return LayerData[T]{rows: rows, kind: StorageDense}
}

// SparseData wraps the set positions of a sparse layer.
func SparseData[T any](m map[ChunkLocalPos]T) LayerData[T] {
	if m == nil {
		m = map[ChunkLocalPos]T{}
	}
	return LayerData[T]{sparse: m, kind: StorageSparse}
}

func (d LayerData[T]) Kind() StorageKind { return d.kind }

func (d LayerData[T]) storage(size Size) *LayerStorage[T] {
	switch d.kind {
	case StorageDense:
		return NewDenseFromRows(d.rows)
	case StorageSparse:
		return NewSparseFromMap(d.sparse, size.X, size.Y)
	default:
		violate(ErrMalformedInputGrid, "layer data has no payload")
		return nil
	}
}

// Chunk is one rectangular piece of a tilemap holding up to MaxLayers layers.
// Every layer has the dimensions of MainLayer.
type Chunk[T any, C Converter] struct {
	pos      ChunkPos
	layers   map[LayerID]*LayerStorage[T]
	mask     LayerMask
	settings C

	// revision counts mutations; readers use it to detect stale copies.
	revision uint64
}

// NewChunk builds a chunk whose MainLayer comes from data. size is the chunk's own
// extent, which is smaller than the max chunk size on clipped edges.
func NewChunk[T any, C Converter](pos ChunkPos, size Size, data LayerData[T], settings C) *Chunk[T, C] {
	main := data.storage(size)
	if main.Dimensions() != size {
		violate(ErrLayerSizeMismatch, "%s main layer is %s, want %s", pos, main.Dimensions(), size)
	}
	return &Chunk[T, C]{
		pos:      pos,
		layers:   map[LayerID]*LayerStorage[T]{MainLayer: main},
		mask:     LayerMask(MainLayer),
		settings: settings,
	}
}

// AddLayer inserts or replaces layer id. Dense payloads must match the chunk dimensions.
func (c *Chunk[T, C]) AddLayer(id LayerID, data LayerData[T]) {
	if !id.Valid() {
		violate(ErrInvalidLayerID, "layer %#x", uint32(id))
	}
	size := c.Dimensions()
	st := data.storage(size)
	if st.Dimensions() != size {
		violate(ErrLayerSizeMismatch, "%s layer %d is %s, want %s", c.pos, id.Index(), st.Dimensions(), size)
	}
	c.putLayer(id, st)
}

func (c *Chunk[T, C]) putLayer(id LayerID, st *LayerStorage[T]) {
	c.layers[id] = st
	c.mask = c.mask.With(id)
	c.revision++
}

func (c *Chunk[T, C]) Position() ChunkPos { return c.pos }
func (c *Chunk[T, C]) Settings() C        { return c.settings }
func (c *Chunk[T, C]) Layers() LayerMask  { return c.mask }
func (c *Chunk[T, C]) Revision() uint64   { return c.revision }

func (c *Chunk[T, C]) HasLayer(id LayerID) bool { return c.mask.Has(id) }

// Dimensions returns the extent of the main layer.
func (c *Chunk[T, C]) Dimensions() Size {
	main, ok := c.layers[MainLayer]
	if !ok {
		violate(ErrMissingDefaultLayer, "%s", c.pos)
	}
	return main.Dimensions()
}

func (c *Chunk[T, C]) Contains(p ChunkLocalPos) bool {
	d := c.Dimensions()
	return p.X >= 0 && p.Y >= 0 && p.X < d.X && p.Y < d.Y
}

// Storage exposes one layer for export.
func (c *Chunk[T, C]) Storage(id LayerID) (*LayerStorage[T], bool) {
	st, ok := c.layers[id]
	return st, ok
}

// layer resolves id and checks that p lies inside the chunk's own extent.
func (c *Chunk[T, C]) layer(id LayerID, p ChunkLocalPos) (*LayerStorage[T], error) {
	st, ok := c.layers[id]
	if !ok {
		return nil, fmt.Errorf("%w: layer %d in %s", ErrLayerNotFound, id.Index(), c.pos)
	}
	if !st.Contains(p) {
		return nil, fmt.Errorf("%w: %s outside %s (%s)", ErrInvalidChunkPosition, p, c.pos, st.Dimensions())
	}
	return st, nil
}

func (c *Chunk[T, C]) TileData(id LayerID, p ChunkLocalPos) (T, error) {
	var zero T
	st, err := c.layer(id, p)
	if err != nil {
		return zero, err
	}
	v, ok := st.Get(p)
	if !ok {
		return zero, fmt.Errorf("%w: %s in %s", ErrTileDataDoesNotExist, p, c.pos)
	}
	return v, nil
}

func (c *Chunk[T, C]) SetTileData(id LayerID, p ChunkLocalPos, v T) error {
	st, err := c.layer(id, p)
	if err != nil {
		return err
	}
	st.Set(p, v)
	c.revision++
	return nil
}

func (c *Chunk[T, C]) TileEntity(id LayerID, p ChunkLocalPos) (Entity, error) {
	st, err := c.layer(id, p)
	if err != nil {
		return NilEntity, err
	}
	e, ok := st.Entity(p)
	if !ok {
		return NilEntity, fmt.Errorf("%w: %s in %s", ErrTileEntityDoesNotExist, p, c.pos)
	}
	return e, nil
}

func (c *Chunk[T, C]) SetTileEntity(id LayerID, p ChunkLocalPos, e Entity) error {
	st, err := c.layer(id, p)
	if err != nil {
		return err
	}
	st.SetEntity(p, e)
	c.revision++
	return nil
}

func (c *Chunk[T, C]) ClearTileEntity(id LayerID, p ChunkLocalPos) error {
	st, err := c.layer(id, p)
	if err != nil {
		return err
	}
	st.ClearEntity(p)
	c.revision++
	return nil
}

func (c *Chunk[T, C]) TileDataFromCell(id LayerID, cell Cell) (T, error) {
	return c.TileData(id, c.settings.LocalPosition(cell))
}

func (c *Chunk[T, C]) SetTileDataFromCell(id LayerID, cell Cell, v T) error {
	return c.SetTileData(id, c.settings.LocalPosition(cell), v)
}

func (c *Chunk[T, C]) TileEntityFromCell(id LayerID, cell Cell) (Entity, error) {
	return c.TileEntity(id, c.settings.LocalPosition(cell))
}

func (c *Chunk[T, C]) SetTileEntityFromCell(id LayerID, cell Cell, e Entity) error {
	return c.SetTileEntity(id, c.settings.LocalPosition(cell), e)
}
