// Package mapfile reads JSON layer files into builder input.
package mapfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"sparsetile.ai/internal/tilemap"
)

//go:embed layer.schema.json
var layerSchemaJSON string

const schemaURL = "layer.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func layerSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, layerSchemaJSON)
	})
	return schema, schemaErr
}

type File struct {
	Kind   string     `json:"kind"`
	Rows   [][]uint16 `json:"rows,omitempty"`
	Width  int        `json:"width,omitempty"`
	Height int        `json:"height,omitempty"`
	Tiles  []Tile     `json:"tiles,omitempty"`
}

type Tile struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Value uint16 `json:"value"`
}

func Load(path string) (tilemap.TilemapLayer[uint16], error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return tilemap.TilemapLayer[uint16]{}, err
	}
	l, err := Decode(b)
	if err != nil {
		return l, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Decode validates b against the layer schema and converts it. Shape errors
// the schema cannot express (ragged rows, tiles outside the declared size,
// duplicate tiles) are reported here instead of panicking in the builder.
func Decode(b []byte) (tilemap.TilemapLayer[uint16], error) {
	var zero tilemap.TilemapLayer[uint16]
	s, err := layerSchema()
	if err != nil {
		return zero, fmt.Errorf("compile layer schema: %w", err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return zero, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return zero, fmt.Errorf("schema: %w", err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return zero, fmt.Errorf("decode: %w", err)
	}
	return f.Layer()
}

func (f File) Layer() (tilemap.TilemapLayer[uint16], error) {
	var zero tilemap.TilemapLayer[uint16]
	switch f.Kind {
	case "dense":
		if len(f.Rows) == 0 || len(f.Rows[0]) == 0 {
			return zero, fmt.Errorf("dense layer has no rows")
		}
		w := len(f.Rows[0])
		for y, row := range f.Rows {
			if len(row) != w {
				return zero, fmt.Errorf("row %d has %d values want %d", y, len(row), w)
			}
		}
		return tilemap.NewDenseLayer(f.Rows, nil), nil
	case "sparse":
		if f.Width <= 0 || f.Height <= 0 {
			return zero, fmt.Errorf("sparse layer size %dx%d", f.Width, f.Height)
		}
		cells := make(map[tilemap.Cell]uint16, len(f.Tiles))
		for _, t := range f.Tiles {
			if t.X < 0 || t.Y < 0 || t.X >= f.Width || t.Y >= f.Height {
				return zero, fmt.Errorf("tile (%d,%d) outside %dx%d", t.X, t.Y, f.Width, f.Height)
			}
			c := tilemap.Cell{X: t.X, Y: t.Y}
			if _, dup := cells[c]; dup {
				return zero, fmt.Errorf("duplicate tile (%d,%d)", t.X, t.Y)
			}
			cells[c] = t.Value
		}
		return tilemap.NewSparseLayer(f.Width, f.Height, cells, nil), nil
	default:
		return zero, fmt.Errorf("unknown layer kind %q", f.Kind)
	}
}
