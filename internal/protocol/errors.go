package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrMapNotFound     = "E_MAP_NOT_FOUND"

	// Tile access.
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrInvalidChunkPos = "E_INVALID_CHUNK_POS"
	ErrNoTileData      = "E_NO_TILE_DATA"
	ErrNoTileEntity    = "E_NO_TILE_ENTITY"
	ErrLayerNotFound   = "E_LAYER_NOT_FOUND"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrMapNotFound:     {},
	ErrBadRequest:      {},
	ErrInvalidChunkPos: {},
	ErrNoTileData:      {},
	ErrNoTileEntity:    {},
	ErrLayerNotFound:   {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
