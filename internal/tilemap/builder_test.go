package tilemap

import (
	"errors"
	"testing"
)

func TestBuilderMergesLayers(t *testing.T) {
	conv := Square(5, 5)
	decor := LayerBit(1)
	units := LayerBit(2)

	e := NilEntity
	e[15] = 9
	b := NewBuilder(NewDenseLayer(rowsOf(8, 9), map[Cell]Entity{{X: 7, Y: 8}: e}), conv)
	b.AddLayer(NewSparseLayer(8, 9, map[Cell]uint16{{X: 6, Y: 6}: 42}, nil), units)
	b.AddLayer(NewDenseUniformLayer(8, 9, uint16(3), nil), decor)

	built, ok := b.Build()
	if !ok {
		t.Fatalf("Build reported no main layer")
	}
	if built.MapSize != (Size{X: 8, Y: 9}) {
		t.Fatalf("map size: got %v", built.MapSize)
	}
	corner, _ := built.Chunks.Get(1, 1)
	if corner.Layers().Count() != 3 {
		t.Fatalf("layers: got %b", corner.Layers())
	}
	if v, err := corner.TileDataFromCell(decor, Cell{X: 7, Y: 8}); err != nil || v != 3 {
		t.Fatalf("decor: got %d,%v want 3", v, err)
	}
	if v, err := corner.TileDataFromCell(units, Cell{X: 6, Y: 6}); err != nil || v != 42 {
		t.Fatalf("units: got %d,%v want 42", v, err)
	}
	if _, err := corner.TileDataFromCell(units, Cell{X: 7, Y: 8}); !errors.Is(err, ErrTileDataDoesNotExist) {
		t.Fatalf("units absent: got %v", err)
	}
	if got, err := corner.TileEntityFromCell(MainLayer, Cell{X: 7, Y: 8}); err != nil || got != e {
		t.Fatalf("entity: got %v,%v", got, err)
	}
	if st, _ := corner.Storage(decor); st.Kind() != StorageDense || st.Dimensions() != (Size{X: 3, Y: 4}) {
		t.Fatalf("decor storage: kind %v dims %v", st.Kind(), st.Dimensions())
	}
}

func TestBuilderSparseMain(t *testing.T) {
	b := NewBuilder(NewSparseLayer(32, 32, map[Cell]uint16{{X: 0, Y: 0}: 1, {X: 31, Y: 31}: 2}, nil), Hex(10, 10, HexFlat))
	built, ok := b.Build()
	if !ok {
		t.Fatalf("Build failed")
	}
	if built.Chunks.Size() != (Size{X: 4, Y: 4}) {
		t.Fatalf("chunk counts: got %v", built.Chunks.Size())
	}
	last, _ := built.Chunks.Get(3, 3)
	if v, err := last.TileDataFromCell(MainLayer, Cell{X: 31, Y: 31}); err != nil || v != 2 {
		t.Fatalf("(31,31): got %d,%v", v, err)
	}
	if last.Settings().OffsetMode() != OffsetOddColumns {
		t.Fatalf("chunk settings lost orientation")
	}
}

func TestBuilderRejectsBadLayers(t *testing.T) {
	b := NewBuilder(NewDenseLayer(rowsOf(4, 4), nil), Square(2, 2))
	mustViolate(t, ErrLayerSizeMismatch, func() {
		b.AddLayer(NewDenseLayer(rowsOf(4, 3), nil), LayerBit(1))
	})
	mustViolate(t, ErrInvalidLayerID, func() {
		b.AddLayer(NewDenseLayer(rowsOf(4, 4), nil), MainLayer)
	})
	mustViolate(t, ErrInvalidLayerID, func() {
		b.AddLayer(NewDenseLayer(rowsOf(4, 4), nil), LayerID(6))
	})
}

func TestBuilderRejectsEmptyMap(t *testing.T) {
	mustViolate(t, ErrMalformedInputGrid, func() {
		NewBuilder(NewSparseLayer[uint16](0, 0, nil, nil), Square(4, 4))
	})
	mustViolate(t, ErrMalformedInputGrid, func() {
		NewBuilder(NewSparseLayer[uint16](5, 0, nil, nil), Square(4, 4))
	})
}

func TestBuilderWithoutMainLayer(t *testing.T) {
	var b Builder[uint16, SquareSettings]
	if _, ok := b.Build(); ok {
		t.Fatalf("zero builder built a map")
	}
	if _, ok := NewBuilder(TilemapLayer[uint16]{}, Square(4, 4)).Build(); ok {
		t.Fatalf("builder with zero main layer built a map")
	}
}

func TestBuiltSpawn(t *testing.T) {
	host := newTestHost[uint16, SquareSettings]()
	built, _ := NewBuilder(NewDenseLayer(rowsOf(8, 9), nil), Square(5, 5)).Build()
	h := built.Spawn(host)
	tm, ok := host.Tilemap(h)
	if !ok {
		t.Fatalf("tilemap not stored")
	}
	if len(host.chunks) != 4 {
		t.Fatalf("chunks stored: got %d want 4", len(host.chunks))
	}
	if tm.Chunks().ChunkCounts() != (Size{X: 2, Y: 2}) || tm.MaxChunkSize() != (Size{X: 5, Y: 5}) {
		t.Fatalf("registry: counts %v max %v", tm.Chunks().ChunkCounts(), tm.MaxChunkSize())
	}
	ch, pos, err := tm.ChunkForCell(Cell{X: 6, Y: 1})
	if err != nil || pos != (ChunkPos{X: 1, Y: 0}) {
		t.Fatalf("ChunkForCell: %v %v", pos, err)
	}
	if stored, ok := host.Chunk(ch); !ok || stored.Position() != pos {
		t.Fatalf("handle points at wrong chunk")
	}
	if _, err := tm.Chunk(ChunkPos{X: 2, Y: 0}); !errors.Is(err, ErrInvalidChunkPosition) {
		t.Fatalf("outside grid: got %v", err)
	}
}

func TestNewChunkHandleGrid(t *testing.T) {
	g := NewChunkHandleGrid([][]Handle{{1, 2}, {3, 4}})
	if h, _ := g.Get(1, 1); h != 4 {
		t.Fatalf("Get(1,1): got %d want 4", h)
	}
	mustViolate(t, ErrMalformedInputGrid, func() {
		NewChunkHandleGrid([][]Handle{{1, 2}, {3}})
	})
}
