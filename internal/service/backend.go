package service

import (
	"context"
	"fmt"

	"sparsetile.ai/internal/config"
	"sparsetile.ai/internal/protocol"
	"sparsetile.ai/internal/tilemap"
)

// Backend is a hosted map with its topology erased, as the transport sees it.
type Backend interface {
	ID() string
	Info() protocol.MapInfo
	NewSession() Session
	Snapshot() (string, error)
	Close() error
}

var (
	_ Backend = (*Map[tilemap.SquareSettings])(nil)
	_ Backend = (*Map[tilemap.HexSettings])(nil)
)

// OpenBackend opens the map described by spec with the converter its topology names.
func OpenBackend(ctx context.Context, spec config.MapSpec, opts Options) (Backend, error) {
	conv, err := spec.Converter()
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", spec.ID, err)
	}
	switch c := conv.(type) {
	case tilemap.SquareSettings:
		return openSpec(ctx, spec, c, opts)
	case tilemap.HexSettings:
		return openSpec(ctx, spec, c, opts)
	default:
		return nil, fmt.Errorf("map %s: unsupported converter %T", spec.ID, conv)
	}
}

func openSpec[C tilemap.Converter](ctx context.Context, spec config.MapSpec, conv C, opts Options) (Backend, error) {
	m, err := Open[C](ctx, spec.ID, spec.LayerNames(), opts, func(ctx context.Context) (*tilemap.Built[uint16, C], error) {
		layers, err := LoadLayers(ctx, spec)
		if err != nil {
			return nil, err
		}
		return BuildLayers(layers, conv)
	})
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", spec.ID, err)
	}
	return m, nil
}
