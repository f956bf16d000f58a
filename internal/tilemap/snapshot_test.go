package tilemap

import (
	"errors"
	"path/filepath"
	"testing"

	"sparsetile.ai/internal/persistence/snapshot"
)

func buildMixed(t *testing.T, host Host[uint16, HexSettings]) Handle {
	t.Helper()
	e := NilEntity
	e[3] = 3
	b := NewBuilder(NewDenseLayer(rowsOf(8, 9), map[Cell]Entity{{X: 1, Y: 1}: e}), Hex(5, 5, HexFlat))
	b.AddLayer(NewSparseLayer(8, 9, map[Cell]uint16{{X: 7, Y: 8}: 70, {X: 0, Y: 4}: 4}, nil), LayerBit(4))
	built, ok := b.Build()
	if !ok {
		t.Fatalf("Build failed")
	}
	return built.Spawn(host)
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newTestHost[uint16, HexSettings]()
	h := buildMixed(t, src)
	snap, err := ExportTilemap[uint16, HexSettings](src, h, "m1", 3)
	if err != nil {
		t.Fatalf("ExportTilemap: %v", err)
	}
	if snap.Topology != "hex" || snap.Orientation != "flat" || snap.ChunksX != 2 || snap.ChunksY != 2 {
		t.Fatalf("snapshot header fields: %+v", snap)
	}

	path := filepath.Join(t.TempDir(), "m1"+snapshot.Ext)
	if err := snapshot.Write(path, snap); err != nil {
		t.Fatalf("Write: %v", err)
	}
	read, err := snapshot.Read[uint16](path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	dst := newTestHost[uint16, HexSettings]()
	h2, err := ImportTilemap[uint16, HexSettings](read, dst)
	if err != nil {
		t.Fatalf("ImportTilemap: %v", err)
	}
	a, _ := NewManager[uint16, HexSettings](src, h)
	b, _ := NewManager[uint16, HexSettings](dst, h2)
	if d, _ := b.Dimensions(); d != (Size{X: 8, Y: 9}) {
		t.Fatalf("imported dims: got %v", d)
	}
	for _, id := range []LayerID{MainLayer, LayerBit(4)} {
		a.SetLayer(id)
		b.SetLayer(id)
		for y := 0; y < 9; y++ {
			for x := 0; x < 8; x++ {
				c := Cell{X: x, Y: y}
				va, ea := a.TileData(c)
				vb, eb := b.TileData(c)
				if va != vb || (ea == nil) != (eb == nil) {
					t.Fatalf("layer %d %v: got %d,%v want %d,%v", id.Index(), c, vb, eb, va, ea)
				}
				xa, _ := a.TileEntity(c)
				xb, _ := b.TileEntity(c)
				if xa != xb {
					t.Fatalf("layer %d %v entity: got %v want %v", id.Index(), c, xb, xa)
				}
			}
		}
	}
	ch, _ := b.Chunk(Cell{X: 7, Y: 8})
	if st, _ := ch.Storage(LayerBit(4)); st.Kind() != StorageSparse || st.Len() != 1 {
		t.Fatalf("sparse layer not kept sparse: %v len %d", st.Kind(), st.Len())
	}
	if ch.Settings().Orientation != HexFlat {
		t.Fatalf("orientation lost")
	}
}

func TestImportRejectsBadSnapshots(t *testing.T) {
	src := newTestHost[uint16, SquareSettings]()
	built, _ := NewBuilder(NewDenseLayer(rowsOf(8, 9), nil), Square(5, 5)).Build()
	good, err := ExportTilemap[uint16, SquareSettings](src, built.Spawn(src), "m", 1)
	if err != nil {
		t.Fatalf("ExportTilemap: %v", err)
	}

	cases := map[string]func(s *snapshot.TilemapV1[uint16]){
		"topology":   func(s *snapshot.TilemapV1[uint16]) { s.Topology = "hex" },
		"counts":     func(s *snapshot.TilemapV1[uint16]) { s.ChunksX = 3 },
		"no layer 1": func(s *snapshot.TilemapV1[uint16]) { s.Chunks[0].Layers[0].ID = 2 },
		"run total":  func(s *snapshot.TilemapV1[uint16]) { s.Chunks[1].Layers[0].Runs[0].Len++ },
		"edge size":  func(s *snapshot.TilemapV1[uint16]) { s.Chunks[1].W = 5 },
		"kind":       func(s *snapshot.TilemapV1[uint16]) { s.Chunks[2].Layers[0].Kind = "packed" },
		"duplicate":  func(s *snapshot.TilemapV1[uint16]) { s.Chunks[3].X, s.Chunks[3].Y = 0, 0 },
	}
	for name, mutate := range cases {
		snap := cloneSnapshot(good)
		mutate(&snap)
		dst := newTestHost[uint16, SquareSettings]()
		if _, err := ImportTilemap[uint16, SquareSettings](snap, dst); !errors.Is(err, ErrBadSnapshot) {
			t.Fatalf("%s: got %v want ErrBadSnapshot", name, err)
		}
		if len(dst.chunks) != 0 || len(dst.tilemaps) != 0 {
			t.Fatalf("%s: failed import stored objects", name)
		}
	}

	if _, err := ImportTilemap[uint16, HexSettings](good, newTestHost[uint16, HexSettings]()); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("square snapshot into hex map: got %v", err)
	}
}

func cloneSnapshot(s snapshot.TilemapV1[uint16]) snapshot.TilemapV1[uint16] {
	out := s
	out.Chunks = make([]snapshot.ChunkV1[uint16], len(s.Chunks))
	for i, c := range s.Chunks {
		c.Layers = append([]snapshot.LayerV1[uint16](nil), c.Layers...)
		for j := range c.Layers {
			c.Layers[j].Runs = append(c.Layers[j].Runs[:0:0], c.Layers[j].Runs...)
		}
		out.Chunks[i] = c
	}
	return out
}

func TestExportUnknownTilemap(t *testing.T) {
	host := newTestHost[uint16, SquareSettings]()
	if _, err := ExportTilemap[uint16, SquareSettings](host, 5, "m", 0); !errors.Is(err, ErrTilemapNotFound) {
		t.Fatalf("got %v want ErrTilemapNotFound", err)
	}
}
