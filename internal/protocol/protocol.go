package protocol

import "encoding/json"

const Version = "1"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeResult  = "RESULT"

	TypeGetTile      = "GET_TILE"
	TypeSetTile      = "SET_TILE"
	TypeGetEntity    = "GET_ENTITY"
	TypeEnsureEntity = "ENSURE_ENTITY"
	TypeRemoveEntity = "REMOVE_ENTITY"
	TypeSetLayer     = "SET_LAYER"
	TypeDimensions   = "DIMENSIONS"
	TypeGetChunk     = "GET_CHUNK"
)

var requestTypes = map[string]struct{}{
	TypeGetTile:      {},
	TypeSetTile:      {},
	TypeGetEntity:    {},
	TypeEnsureEntity: {},
	TypeRemoveEntity: {},
	TypeSetLayer:     {},
	TypeDimensions:   {},
	TypeGetChunk:     {},
}

func IsRequestType(t string) bool {
	_, ok := requestTypes[t]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
