package tilemap

import (
	"errors"
	"fmt"
)

// Manager reads and writes tiles of one target tilemap through a host. It keeps an
// active layer that every accessor uses until SetLayer changes it.
type Manager[T any, C Converter] struct {
	host   Host[T, C]
	target Handle
	layer  LayerID
}

// NewManager binds a manager to target, which must already be stored in host.
func NewManager[T any, C Converter](host Host[T, C], target Handle) (*Manager[T, C], error) {
	m := &Manager[T, C]{host: host, layer: MainLayer}
	if err := m.SetTarget(target); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager[T, C]) SetTarget(target Handle) error {
	if _, ok := m.host.Tilemap(target); !ok {
		return fmt.Errorf("%w: handle %d", ErrTilemapNotFound, target)
	}
	m.target = target
	return nil
}

func (m *Manager[T, C]) Target() Handle { return m.target }

// SetLayer switches the active layer. id must have exactly one bit set.
func (m *Manager[T, C]) SetLayer(id LayerID) {
	if !id.Valid() {
		violate(ErrInvalidLayerID, "layer %#x", uint32(id))
	}
	m.layer = id
}

func (m *Manager[T, C]) CurrentLayer() LayerID { return m.layer }

func (m *Manager[T, C]) tilemap() (*Tilemap[C], error) {
	tm, ok := m.host.Tilemap(m.target)
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", ErrTilemapNotFound, m.target)
	}
	return tm, nil
}

func (m *Manager[T, C]) chunkAt(pos ChunkPos, tm *Tilemap[C]) (*Chunk[T, C], error) {
	h, err := tm.Chunk(pos)
	if err != nil {
		return nil, err
	}
	ch, ok := m.host.Chunk(h)
	if !ok {
		return nil, fmt.Errorf("%w: %s handle %d", ErrChunkDoesNotExist, pos, h)
	}
	return ch, nil
}

// resolve finds the chunk owning cell and the cell's position inside it.
func (m *Manager[T, C]) resolve(cell Cell) (*Chunk[T, C], ChunkLocalPos, error) {
	tm, err := m.tilemap()
	if err != nil {
		return nil, ChunkLocalPos{}, err
	}
	ch, err := m.chunkAt(tm.Converter().ChunkPosition(cell), tm)
	if err != nil {
		return nil, ChunkLocalPos{}, err
	}
	local := ch.Settings().LocalPosition(cell)
	if !ch.Contains(local) {
		return nil, ChunkLocalPos{}, fmt.Errorf("%w: %s beyond edge of %s", ErrInvalidChunkPosition, cell, ch.Position())
	}
	return ch, local, nil
}

// Chunk returns the chunk owning cell.
func (m *Manager[T, C]) Chunk(cell Cell) (*Chunk[T, C], error) {
	ch, _, err := m.resolve(cell)
	return ch, err
}

func (m *Manager[T, C]) TileData(cell Cell) (T, error) {
	ch, local, err := m.resolve(cell)
	if err != nil {
		var zero T
		return zero, err
	}
	return ch.TileData(m.layer, local)
}

func (m *Manager[T, C]) SetTileData(cell Cell, v T) error {
	ch, local, err := m.resolve(cell)
	if err != nil {
		return err
	}
	return ch.SetTileData(m.layer, local, v)
}

func (m *Manager[T, C]) TileEntity(cell Cell) (Entity, error) {
	ch, local, err := m.resolve(cell)
	if err != nil {
		return NilEntity, err
	}
	return ch.TileEntity(m.layer, local)
}

func (m *Manager[T, C]) SetTileEntity(cell Cell, e Entity) error {
	ch, local, err := m.resolve(cell)
	if err != nil {
		return err
	}
	return ch.SetTileEntity(m.layer, local, e)
}

// GetOrCreateTileEntity returns the entity at cell, asking the host for a new one
// only when none is stored yet. The bool reports whether one was created.
func (m *Manager[T, C]) GetOrCreateTileEntity(cell Cell) (Entity, bool, error) {
	ch, local, err := m.resolve(cell)
	if err != nil {
		return NilEntity, false, err
	}
	e, err := ch.TileEntity(m.layer, local)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, ErrTileEntityDoesNotExist) {
		return NilEntity, false, err
	}
	e = m.host.SpawnEntity()
	if err := ch.SetTileEntity(m.layer, local, e); err != nil {
		m.host.DespawnEntity(e)
		return NilEntity, false, err
	}
	return e, true, nil
}

// RemoveTileEntity releases the entity at cell through the host and clears it.
func (m *Manager[T, C]) RemoveTileEntity(cell Cell) (Entity, error) {
	ch, local, err := m.resolve(cell)
	if err != nil {
		return NilEntity, err
	}
	e, err := ch.TileEntity(m.layer, local)
	if err != nil {
		return NilEntity, err
	}
	m.host.DespawnEntity(e)
	if err := ch.ClearTileEntity(m.layer, local); err != nil {
		return NilEntity, err
	}
	return e, nil
}

// Dimensions rebuilds the map size from the corner chunks:
// first * (counts - 1) + last on each axis.
func (m *Manager[T, C]) Dimensions() (Size, error) {
	tm, err := m.tilemap()
	if err != nil {
		return Size{}, err
	}
	counts := tm.Chunks().ChunkCounts()
	if counts.X == 0 || counts.Y == 0 {
		return Size{}, fmt.Errorf("%w: empty chunk grid", ErrInvalidChunkPosition)
	}
	first, err := m.chunkAt(ChunkPos{}, tm)
	if err != nil {
		return Size{}, err
	}
	last, err := m.chunkAt(ChunkPos{X: counts.X - 1, Y: counts.Y - 1}, tm)
	if err != nil {
		return Size{}, err
	}
	return first.Dimensions().Mul(Size{X: counts.X - 1, Y: counts.Y - 1}).Add(last.Dimensions()), nil
}
