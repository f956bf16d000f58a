package tilemap

import (
	"errors"
	"fmt"
)

// Lookup misses. Returned as error values, never panicked.
var (
	ErrInvalidChunkPosition   = errors.New("tilemap: no chunk exists for the given position")
	ErrChunkDoesNotExist      = errors.New("tilemap: chunk handle is not stored by the host")
	ErrTilemapNotFound        = errors.New("tilemap: tilemap handle is not stored by the host")
	ErrTileDataDoesNotExist   = errors.New("tilemap: tile data does not exist for the given position")
	ErrTileEntityDoesNotExist = errors.New("tilemap: tile entity does not exist for the given position")
	ErrLayerNotFound          = errors.New("tilemap: layer does not exist in chunk")
)

// Contract violations. Raised with panic(*ContractError) at the point of violation.
var (
	ErrMalformedInputGrid  = errors.New("tilemap: malformed input grid")
	ErrLayerSizeMismatch   = errors.New("tilemap: layer size does not match map size")
	ErrLayerCeiling        = errors.New("tilemap: more than 32 layers")
	ErrInvalidLayerID      = errors.New("tilemap: invalid layer id")
	ErrMissingDefaultLayer = errors.New("tilemap: default layer missing from chunk")
	ErrInvalidChunkSize    = errors.New("tilemap: chunk size must be positive")
)

// ContractError is the panic value for contract violations.
type ContractError struct {
	Err    error
	Detail string
}

func (e *ContractError) Error() string { return e.Err.Error() + ": " + e.Detail }
func (e *ContractError) Unwrap() error { return e.Err }

func violate(err error, format string, args ...any) {
	panic(&ContractError{Err: err, Detail: fmt.Sprintf(format, args...)})
}

// ErrBadSnapshot is returned when a snapshot cannot be turned back into a tilemap.
var ErrBadSnapshot = errors.New("tilemap: snapshot does not describe a valid tilemap")
