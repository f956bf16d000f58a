package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"sparsetile.ai/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v through encoding/json so the schema sees wire data.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile(t, "hello.schema.json")
	welcomeSchema := compile(t, "welcome.schema.json")
	requestSchema := compile(t, "request.schema.json")
	resultSchema := compile(t, "result.schema.json")

	validate(helloSchema, asJSON(t, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "editor",
		MapID:           "overworld",
	}))

	validate(welcomeSchema, asJSON(t, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "0b6f1c1e-8a8e-4a53-9a55-1c1f3f0f6a11",
		Map: protocol.MapInfo{
			MapID:       "island",
			Topology:    "hex",
			Orientation: "flat",
			ChunkSize:   [2]int{5, 5},
			Width:       8,
			Height:      9,
			Layers:      []string{"terrain", "resources"},
			Revision:    12,
		},
	}))

	for _, req := range []protocol.Request{
		{Type: protocol.TypeGetTile, ID: "1", X: -3, Y: 4},
		{Type: protocol.TypeSetTile, ID: "2", X: 1, Y: 1, Value: 65535},
		{Type: protocol.TypeSetLayer, ID: "3", Layer: "objects"},
		{Type: protocol.TypeGetChunk, ID: "4", X: 0, Y: 1},
		{Type: protocol.TypeDimensions},
	} {
		validate(requestSchema, asJSON(t, req))
	}

	v := uint16(7)
	ok := protocol.OK("1")
	ok.Value = &v
	validate(resultSchema, asJSON(t, ok))
	validate(resultSchema, asJSON(t, protocol.Fail("2", protocol.ErrNoTileData, "no tile")))

	chunk := protocol.OK("3")
	chunk.Chunk = &protocol.ChunkView{
		X: 1, Y: 0, W: 3, H: 5, Revision: 4,
		Layers: []protocol.LayerView{
			{Name: "ground", Kind: "dense", RLE: "AgQ="},
			{
				Name:     "objects",
				Kind:     "sparse",
				Tiles:    []protocol.TileView{{X: 1, Y: 2, Value: 9}},
				Entities: []protocol.EntityView{{X: 1, Y: 2, ID: "0b6f1c1e-8a8e-4a53-9a55-1c1f3f0f6a11"}},
			},
		},
	}
	validate(resultSchema, asJSON(t, chunk))
}

func TestSchemas_RejectBadMessages(t *testing.T) {
	requestSchema := compile(t, "request.schema.json")
	resultSchema := compile(t, "result.schema.json")

	bad := []string{
		`{"type":"FLY"}`,
		`{"type":"SET_LAYER","id":"1"}`,
		`{"type":"SET_TILE","x":1,"y":1,"value":70000}`,
		`{"type":"GET_TILE","x":1,"y":1,"extra":true}`,
	}
	for _, s := range bad {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", s, err)
		}
		if err := requestSchema.Validate(v); err == nil {
			t.Fatalf("expected request rejected: %s", s)
		}
	}

	var failNoCode any
	_ = json.Unmarshal([]byte(`{"type":"RESULT","id":"1","ok":false}`), &failNoCode)
	if err := resultSchema.Validate(failNoCode); err == nil {
		t.Fatalf("failed RESULT without code should be rejected")
	}
	var unknownCode any
	_ = json.Unmarshal([]byte(`{"type":"RESULT","ok":false,"code":"E_NOPE"}`), &unknownCode)
	if err := resultSchema.Validate(unknownCode); err == nil {
		t.Fatalf("unknown code should be rejected")
	}
}
