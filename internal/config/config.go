package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sparsetile.ai/internal/tilemap"
)

type Config struct {
	Server ServerSpec `yaml:"server"`
	Maps   []MapSpec  `yaml:"maps"`
}

type ServerSpec struct {
	Addr               string `yaml:"addr"`
	DataDir            string `yaml:"data_dir"`
	DisableDB          bool   `yaml:"disable_db"`
	SnapshotEveryEdits int    `yaml:"snapshot_every_edits"`
	ChunkCacheMB       int    `yaml:"chunk_cache_mb"`
}

type MapSpec struct {
	ID          string      `yaml:"id"`
	Topology    string      `yaml:"topology"`
	Orientation string      `yaml:"orientation,omitempty"`
	ChunkSize   [2]int      `yaml:"chunk_size"`
	Width       int         `yaml:"width,omitempty"`
	Height      int         `yaml:"height,omitempty"`
	Fill        uint16      `yaml:"fill,omitempty"`
	Layers      []LayerSpec `yaml:"layers"`
}

// LayerSpec names one layer. The first layer of a map is its main layer.
// Without a file, a dense layer is filled with the map fill value and a sparse
// layer starts empty.
type LayerSpec struct {
	Name string `yaml:"name"`
	File string `yaml:"file,omitempty"`
	Kind string `yaml:"kind,omitempty"`
}

const (
	KindDense  = "dense"
	KindSparse = "sparse"
)

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// A file that lists maps replaces the default map set.
	cfg.Maps = nil
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("tilemapd.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("tilemapd.yaml: %w", err)
	}
	cfg.resolveFiles(filepath.Dir(path))
	return cfg, nil
}

func Defaults() Config {
	return Config{
		Server: ServerSpec{
			Addr:               ":8080",
			DataDir:            "./data",
			SnapshotEveryEdits: 1000,
			ChunkCacheMB:       16,
		},
		Maps: []MapSpec{
			{
				ID:        "main",
				Topology:  string(tilemap.TopologySquare),
				ChunkSize: [2]int{32, 32},
				Width:     256,
				Height:    256,
				Layers: []LayerSpec{
					{Name: "ground", Kind: KindDense},
					{Name: "objects", Kind: KindSparse},
				},
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.Server.SnapshotEveryEdits < 0 {
		c.Server.SnapshotEveryEdits = 0
	}
	if c.Server.ChunkCacheMB < 0 {
		c.Server.ChunkCacheMB = 0
	}
	for i := range c.Maps {
		m := &c.Maps[i]
		m.ID = strings.TrimSpace(m.ID)
		m.Topology = strings.ToLower(strings.TrimSpace(m.Topology))
		if m.Topology == "" {
			m.Topology = string(tilemap.TopologySquare)
		}
		m.Orientation = strings.ToLower(strings.TrimSpace(m.Orientation))
		if m.Topology == string(tilemap.TopologyHex) && m.Orientation == "" {
			m.Orientation = tilemap.HexPointy.String()
		}
		for j := range m.Layers {
			l := &m.Layers[j]
			l.Name = strings.TrimSpace(l.Name)
			l.Kind = strings.ToLower(strings.TrimSpace(l.Kind))
			if l.Kind == "" {
				if j == 0 {
					l.Kind = KindDense
				} else {
					l.Kind = KindSparse
				}
			}
		}
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if strings.TrimSpace(c.Server.DataDir) == "" {
		return fmt.Errorf("server.data_dir must not be empty")
	}
	if len(c.Maps) == 0 {
		return fmt.Errorf("maps must not be empty")
	}
	seen := map[string]bool{}
	for _, m := range c.Maps {
		if m.ID == "" {
			return fmt.Errorf("map id must not be empty")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate map id: %s", m.ID)
		}
		seen[m.ID] = true
		if err := m.validate(); err != nil {
			return fmt.Errorf("map %s %w", m.ID, err)
		}
	}
	return nil
}

func (m MapSpec) validate() error {
	switch tilemap.Topology(m.Topology) {
	case tilemap.TopologySquare:
	case tilemap.TopologyHex:
		if _, err := tilemap.ParseHexOrientation(m.Orientation); err != nil {
			return fmt.Errorf("orientation: %w", err)
		}
	default:
		return fmt.Errorf("topology %q must be square or hex", m.Topology)
	}
	if m.ChunkSize[0] <= 0 || m.ChunkSize[1] <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("must define at least one layer")
	}
	if len(m.Layers) > tilemap.MaxLayers {
		return fmt.Errorf("has %d layers, at most %d allowed", len(m.Layers), tilemap.MaxLayers)
	}
	names := map[string]bool{}
	for _, l := range m.Layers {
		if l.Name == "" {
			return fmt.Errorf("has empty layer name")
		}
		if names[l.Name] {
			return fmt.Errorf("duplicate layer name: %s", l.Name)
		}
		names[l.Name] = true
		if l.Kind != KindDense && l.Kind != KindSparse {
			return fmt.Errorf("layer %s kind %q must be dense or sparse", l.Name, l.Kind)
		}
	}
	if m.Layers[0].File == "" && (m.Width <= 0 || m.Height <= 0) {
		return fmt.Errorf("width/height must be > 0 when the main layer has no file")
	}
	return nil
}

func (m MapSpec) Converter() (tilemap.Converter, error) {
	switch tilemap.Topology(m.Topology) {
	case tilemap.TopologySquare:
		return tilemap.Square(m.ChunkSize[0], m.ChunkSize[1]), nil
	case tilemap.TopologyHex:
		o, err := tilemap.ParseHexOrientation(m.Orientation)
		if err != nil {
			return nil, err
		}
		return tilemap.Hex(m.ChunkSize[0], m.ChunkSize[1], o), nil
	}
	return nil, fmt.Errorf("unknown topology %q", m.Topology)
}

func (m MapSpec) LayerNames() []string {
	out := make([]string, 0, len(m.Layers))
	for _, l := range m.Layers {
		out = append(out, l.Name)
	}
	return out
}

// Layer files are relative to the config file.
func (c *Config) resolveFiles(base string) {
	for i := range c.Maps {
		for j := range c.Maps[i].Layers {
			f := c.Maps[i].Layers[j].File
			if f != "" && !filepath.IsAbs(f) {
				c.Maps[i].Layers[j].File = filepath.Join(base, f)
			}
		}
	}
}
