package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	MapID           string `json:"map_id,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	SessionID       string  `json:"session_id"`
	Map             MapInfo `json:"map"`
}

type MapInfo struct {
	MapID       string   `json:"map_id"`
	Topology    string   `json:"topology"`
	Orientation string   `json:"orientation,omitempty"`
	ChunkSize   [2]int   `json:"chunk_size"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Layers      []string `json:"layers"`
	Revision    uint64   `json:"revision"`
}

// Request is any tile request (client -> server). X and Y name a cell, except for
// GET_CHUNK where they name a chunk position.
type Request struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Value uint16 `json:"value,omitempty"`
	Layer string `json:"layer,omitempty"`
}

// RESULT (server -> client), one per request.
type ResultMsg struct {
	Type    string     `json:"type"`
	ID      string     `json:"id,omitempty"`
	OK      bool       `json:"ok"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
	Value   *uint16    `json:"value,omitempty"`
	Entity  string     `json:"entity,omitempty"`
	Created bool       `json:"created,omitempty"`
	Layer   string     `json:"layer,omitempty"`
	Width   int        `json:"width,omitempty"`
	Height  int        `json:"height,omitempty"`
	Chunk   *ChunkView `json:"chunk,omitempty"`
}

// ChunkView is one chunk with every layer. Dense layers carry base64 RLE in Tiles.
type ChunkView struct {
	X        int         `json:"x"`
	Y        int         `json:"y"`
	W        int         `json:"w"`
	H        int         `json:"h"`
	Revision uint64      `json:"revision"`
	Layers   []LayerView `json:"layers"`
}

type LayerView struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	RLE      string       `json:"rle,omitempty"`
	Tiles    []TileView   `json:"tiles,omitempty"`
	Entities []EntityView `json:"entities,omitempty"`
}

type TileView struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Value uint16 `json:"value"`
}

type EntityView struct {
	X  int    `json:"x"`
	Y  int    `json:"y"`
	ID string `json:"id"`
}

func OK(id string) ResultMsg {
	return ResultMsg{Type: TypeResult, ID: id, OK: true}
}

func Fail(id, code, msg string) ResultMsg {
	return ResultMsg{Type: TypeResult, ID: id, Code: code, Message: msg}
}
