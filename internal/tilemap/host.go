package tilemap

import "github.com/google/uuid"

// Entity is a host-allocated handle associated with a tile. The engine stores and
// returns Entity values but never allocates, frees or inspects them.
type Entity uuid.UUID

var NilEntity Entity

func (e Entity) IsNil() bool    { return e == NilEntity }
func (e Entity) String() string { return uuid.UUID(e).String() }

func ParseEntity(s string) (Entity, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilEntity, err
	}
	return Entity(id), nil
}

// Handle is an opaque host slot key naming a stored chunk or tilemap.
type Handle uint64

// Host stores chunk and tilemap objects by handle and allocates tile entities.
type Host[T any, C Converter] interface {
	InsertChunk(ch *Chunk[T, C]) Handle
	Chunk(h Handle) (*Chunk[T, C], bool)
	InsertTilemap(tm *Tilemap[C]) Handle
	Tilemap(h Handle) (*Tilemap[C], bool)

	SpawnEntity() Entity
	DespawnEntity(e Entity)
}
