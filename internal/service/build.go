package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sparsetile.ai/internal/config"
	"sparsetile.ai/internal/mapfile"
	"sparsetile.ai/internal/tilemap"
)

// LoadLayers reads the layer files of spec concurrently. Layers without a file are
// synthesized from the map fill value (dense) or left empty (sparse).
func LoadLayers(ctx context.Context, spec config.MapSpec) ([]tilemap.TilemapLayer[uint16], error) {
	layers := make([]tilemap.TilemapLayer[uint16], len(spec.Layers))
	g, ctx := errgroup.WithContext(ctx)
	for i, ls := range spec.Layers {
		i, ls := i, ls
		if ls.File == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := mapfile.Load(ls.File)
			if err != nil {
				return fmt.Errorf("layer %s: %w", ls.Name, err)
			}
			layers[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	size := tilemap.Size{X: spec.Width, Y: spec.Height}
	if spec.Layers[0].File != "" {
		size = layers[0].Dimensions()
	}
	for i, ls := range spec.Layers {
		if ls.File != "" {
			if got := layers[i].Dimensions(); got != size {
				return nil, fmt.Errorf("layer %s is %s, map is %s", ls.Name, got, size)
			}
			continue
		}
		if ls.Kind == config.KindDense {
			layers[i] = tilemap.NewDenseUniformLayer(size.X, size.Y, spec.Fill, nil)
		} else {
			layers[i] = tilemap.NewSparseLayer[uint16](size.X, size.Y, nil, nil)
		}
	}
	return layers, nil
}

// BuildLayers assigns layers to bits in order and builds the chunk grid.
func BuildLayers[C tilemap.Converter](layers []tilemap.TilemapLayer[uint16], conv C) (*tilemap.Built[uint16, C], error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers")
	}
	if len(layers) > tilemap.MaxLayers {
		return nil, fmt.Errorf("%d layers, at most %d allowed", len(layers), tilemap.MaxLayers)
	}
	b := tilemap.NewBuilder(layers[0], conv)
	for i := 1; i < len(layers); i++ {
		if layers[i].Dimensions() != b.MapSize() {
			return nil, fmt.Errorf("layer %d is %s, map is %s", i, layers[i].Dimensions(), b.MapSize())
		}
		b.AddLayer(layers[i], tilemap.LayerBit(i))
	}
	built, ok := b.Build()
	if !ok {
		return nil, fmt.Errorf("no main layer")
	}
	return built, nil
}
