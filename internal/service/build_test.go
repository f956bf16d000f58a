package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"sparsetile.ai/internal/config"
	"sparsetile.ai/internal/protocol"
	"sparsetile.ai/internal/tilemap"
)

func TestLoadLayersSynthesizesFilelessLayers(t *testing.T) {
	spec := config.MapSpec{
		ID:        "plain",
		Topology:  "square",
		ChunkSize: [2]int{4, 4},
		Width:     6,
		Height:    5,
		Fill:      7,
		Layers: []config.LayerSpec{
			{Name: "ground", Kind: config.KindDense},
			{Name: "objects", Kind: config.KindSparse},
		},
	}
	layers, err := LoadLayers(context.Background(), spec)
	if err != nil {
		t.Fatalf("LoadLayers: %v", err)
	}
	if layers[0].Kind() != tilemap.StorageDense || layers[1].Kind() != tilemap.StorageSparse {
		t.Fatalf("kinds: got %v %v", layers[0].Kind(), layers[1].Kind())
	}
	built, err := BuildLayers(layers, tilemap.Square(4, 4))
	if err != nil {
		t.Fatalf("BuildLayers: %v", err)
	}
	ch, _ := built.Chunks.Get(1, 1)
	v, err := ch.TileData(tilemap.MainLayer, tilemap.ChunkLocalPos{X: 1, Y: 0})
	if err != nil || v != 7 {
		t.Fatalf("fill value: got %d, %v want 7", v, err)
	}
	if got := ch.Dimensions(); got != (tilemap.Size{X: 2, Y: 1}) {
		t.Fatalf("edge chunk: got %v want 2x1", got)
	}
}

func TestLoadLayersExampleFiles(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "tilemapd.yaml"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	island := cfg.Maps[1]
	b, err := OpenBackend(context.Background(), island, Options{})
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer b.Close()
	info := b.Info()
	if info.Topology != "hex" || info.Orientation != "flat" || info.Width != 8 || info.Height != 9 {
		t.Fatalf("island info: got %+v", info)
	}
	s := b.NewSession()
	mustOK(t, s, protocol.Request{Type: protocol.TypeSetLayer, Layer: "resources"})
	res := mustOK(t, s, protocol.Request{Type: protocol.TypeGetTile, X: 6, Y: 2})
	if *res.Value != 9 {
		t.Fatalf("resource tile: got %d want 9", *res.Value)
	}
}

func TestLoadLayersRejectsSizeMismatch(t *testing.T) {
	spec := config.MapSpec{
		ID:        "bad",
		ChunkSize: [2]int{4, 4},
		Width:     3,
		Height:    3,
		Layers: []config.LayerSpec{
			{Name: "ground", Kind: config.KindDense},
			{Name: "terrain", Kind: config.KindDense, File: filepath.Join("..", "..", "configs", "maps", "island_terrain.json")},
		},
	}
	_, err := LoadLayers(context.Background(), spec)
	if err == nil || !strings.Contains(err.Error(), "terrain") {
		t.Fatalf("expected size mismatch for terrain, got %v", err)
	}
}

func TestLoadLayersMissingFile(t *testing.T) {
	spec := config.MapSpec{
		ID:        "missing",
		ChunkSize: [2]int{4, 4},
		Layers:    []config.LayerSpec{{Name: "ground", Kind: config.KindDense, File: filepath.Join(t.TempDir(), "none.json")}},
	}
	if _, err := LoadLayers(context.Background(), spec); err == nil {
		t.Fatalf("expected error for missing layer file")
	}
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{tilemap.ErrInvalidChunkPosition, protocol.ErrInvalidChunkPos},
		{tilemap.ErrTileDataDoesNotExist, protocol.ErrNoTileData},
		{tilemap.ErrTileEntityDoesNotExist, protocol.ErrNoTileEntity},
		{tilemap.ErrLayerNotFound, protocol.ErrLayerNotFound},
		{tilemap.ErrChunkDoesNotExist, protocol.ErrInternal},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Fatalf("Code(%v): got %q want %q", tc.err, got, tc.want)
		}
	}
}
