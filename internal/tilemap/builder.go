package tilemap

import "sort"

// Builder assembles a chunked tilemap from whole-map layers.
type Builder[T any, C Converter] struct {
	main    *TilemapLayer[T]
	layers  map[LayerID]TilemapLayer[T]
	conv    C
	mapSize Size
}

// NewBuilder takes the map size from main. conv must have a positive max chunk size
// and main must cover at least one cell. A zero TilemapLayer leaves the builder without
// a main layer.
func NewBuilder[T any, C Converter](main TilemapLayer[T], conv C) *Builder[T, C] {
	checkChunkSize(conv.MaxChunkSize())
	if size := main.Dimensions(); main.kind != 0 && (size.X <= 0 || size.Y <= 0) {
		violate(ErrMalformedInputGrid, "empty %s map %s", main.kind, size)
	}
	b := &Builder[T, C]{
		layers:  map[LayerID]TilemapLayer[T]{},
		conv:    conv,
		mapSize: main.Dimensions(),
	}
	if main.kind != 0 {
		b.main = &main
	}
	return b
}

func (b *Builder[T, C]) MapSize() Size { return b.mapSize }

// AddLayer registers an extra layer under id. The layer must cover the same map size as
// the main layer; re-adding an id replaces it.
func (b *Builder[T, C]) AddLayer(layer TilemapLayer[T], id LayerID) *Builder[T, C] {
	if !id.Valid() || id == MainLayer {
		violate(ErrInvalidLayerID, "layer %#x", uint32(id))
	}
	if layer.Dimensions() != b.mapSize {
		violate(ErrLayerSizeMismatch, "layer %d is %s, map is %s", id.Index(), layer.Dimensions(), b.mapSize)
	}
	if b.layers == nil {
		b.layers = map[LayerID]TilemapLayer[T]{}
	}
	b.layers[id] = layer
	return b
}

// Built is the result of Build: every chunk with all layers merged, plus what the
// registry needs.
type Built[T any, C Converter] struct {
	Chunks    *Grid[*Chunk[T, C]]
	MapSize   Size
	Converter C
}

// Build decomposes the main layer and merges the added layers in ascending id order.
// It reports false when no main layer was given.
func (b *Builder[T, C]) Build() (*Built[T, C], bool) {
	if b.main == nil {
		return nil, false
	}
	var grid *Grid[*Chunk[T, C]]
	switch b.main.kind {
	case StorageDense:
		grid = BreakDenseIntoChunks(b.main.rows, b.conv)
	default:
		grid = BreakSparseIntoChunks(MainLayer, b.main.cells, b.mapSize, b.conv)
	}
	AddEntitiesToLayer(MainLayer, grid, b.main.entities, b.mapSize, b.conv)

	ids := make([]LayerID, 0, len(b.layers))
	for id := range b.layers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		b.merge(grid, id, b.layers[id])
	}
	return &Built[T, C]{Chunks: grid, MapSize: b.mapSize, Converter: b.conv}, true
}

func (b *Builder[T, C]) merge(grid *Grid[*Chunk[T, C]], id LayerID, layer TilemapLayer[T]) {
	chunkSize := b.conv.MaxChunkSize()
	grid.Each(func(_, _ int, ch *Chunk[T, C]) {
		switch layer.kind {
		case StorageDense:
			ch.AddLayer(id, DenseData(chunkRows(layer.rows, b.mapSize, ch.Position(), chunkSize)))
		default:
			ch.AddLayer(id, SparseData[T](nil))
		}
	})
	for cell, v := range layer.cells {
		ch := chunkAt(grid, cell, b.mapSize, b.conv)
		if err := ch.SetTileDataFromCell(id, cell, v); err != nil {
			violate(ErrMalformedInputGrid, "%s: %v", cell, err)
		}
	}
	AddEntitiesToLayer(id, grid, layer.entities, b.mapSize, b.conv)
}

// Spawn stores every chunk and then the tilemap in host, returning the tilemap handle.
func (b *Built[T, C]) Spawn(host Host[T, C]) Handle {
	handles := NewGrid[Handle](b.Chunks.Width(), b.Chunks.Height())
	b.Chunks.Each(func(x, y int, ch *Chunk[T, C]) {
		handles.Set(x, y, host.InsertChunk(ch))
	})
	return host.InsertTilemap(NewTilemap(NewChunks(handles, b.Converter.MaxChunkSize()), b.Converter))
}
