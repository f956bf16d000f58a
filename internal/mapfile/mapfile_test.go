package mapfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sparsetile.ai/internal/tilemap"
)

func TestDecodeDense(t *testing.T) {
	l, err := Decode([]byte(`{"kind":"dense","rows":[[1,2,3],[4,5,6]]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l.Kind() != tilemap.StorageDense {
		t.Fatalf("kind: got %v want dense", l.Kind())
	}
	if got := l.Dimensions(); got != (tilemap.Size{X: 3, Y: 2}) {
		t.Fatalf("dims: got %v want 3x2", got)
	}
}

func TestDecodeSparse(t *testing.T) {
	l, err := Decode([]byte(`{"kind":"sparse","width":10,"height":4,"tiles":[{"x":9,"y":3,"value":65535}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l.Kind() != tilemap.StorageSparse {
		t.Fatalf("kind: got %v want sparse", l.Kind())
	}
	if got := l.Dimensions(); got != (tilemap.Size{X: 10, Y: 4}) {
		t.Fatalf("dims: got %v want 10x4", got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{"kind":`, "decode"},
		{"unknown kind", `{"kind":"packed","rows":[[1]]}`, "schema"},
		{"dense without rows", `{"kind":"dense"}`, "schema"},
		{"empty rows", `{"kind":"dense","rows":[]}`, "schema"},
		{"negative value", `{"kind":"dense","rows":[[1,-1]]}`, "schema"},
		{"value overflow", `{"kind":"dense","rows":[[70000]]}`, "schema"},
		{"sparse without size", `{"kind":"sparse","tiles":[]}`, "schema"},
		{"extra field", `{"kind":"sparse","width":2,"height":2,"rows":[[1]]}`, "schema"},
		{"ragged", `{"kind":"dense","rows":[[1,2],[3]]}`, "row 1"},
		{"tile outside", `{"kind":"sparse","width":2,"height":2,"tiles":[{"x":2,"y":0,"value":1}]}`, "outside"},
		{"duplicate tile", `{"kind":"sparse","width":2,"height":2,"tiles":[{"x":1,"y":1,"value":1},{"x":1,"y":1,"value":2}]}`, "duplicate"},
	}
	for _, tc := range cases {
		_, err := Decode([]byte(tc.body))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got %q want substring %q", tc.name, err, tc.want)
		}
	}
}

func TestLoadExampleLayers(t *testing.T) {
	dir := filepath.Join("..", "..", "configs", "maps")
	terrain, err := Load(filepath.Join(dir, "island_terrain.json"))
	if err != nil {
		t.Fatalf("load terrain: %v", err)
	}
	res, err := Load(filepath.Join(dir, "island_resources.json"))
	if err != nil {
		t.Fatalf("load resources: %v", err)
	}
	if terrain.Dimensions() != res.Dimensions() {
		t.Fatalf("example layers disagree: %v vs %v", terrain.Dimensions(), res.Dimensions())
	}
	b := tilemap.NewBuilder(terrain, tilemap.Hex(5, 5, tilemap.HexFlat)).AddLayer(res, tilemap.LayerBit(1))
	built, ok := b.Build()
	if !ok {
		t.Fatalf("build returned no tilemap")
	}
	if got := built.Chunks.Size(); got != (tilemap.Size{X: 2, Y: 2}) {
		t.Fatalf("chunk counts: got %v want 2x2", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
