package tilemap

import (
	"math/bits"
	"strings"
)

// LayerID is a single bit naming one layer. A map has at most MaxLayers layers.
type LayerID uint32

const (
	MainLayer LayerID = 1
	MaxLayers         = 32
)

// LayerBit returns the id of the i-th layer.
func LayerBit(i int) LayerID {
	if i < 0 || i >= MaxLayers {
		violate(ErrLayerCeiling, "layer index %d", i)
	}
	return LayerID(1) << uint(i)
}

// Valid reports whether id has exactly one bit set.
func (id LayerID) Valid() bool { return id != 0 && id&(id-1) == 0 }

func (id LayerID) Index() int { return bits.TrailingZeros32(uint32(id)) }

// LayerMask is a set of layers.
type LayerMask uint32

func (m LayerMask) Has(id LayerID) bool       { return uint32(m)&uint32(id) != 0 }
func (m LayerMask) With(id LayerID) LayerMask { return m | LayerMask(id) }
func (m LayerMask) Count() int                { return bits.OnesCount32(uint32(m)) }

// Layers lists the ids in ascending bit order.
func (m LayerMask) Layers() []LayerID {
	out := make([]LayerID, 0, m.Count())
	for v := uint32(m); v != 0; v &= v - 1 {
		out = append(out, LayerID(1)<<uint(bits.TrailingZeros32(v)))
	}
	return out
}

// LayerNames assigns bits to named layers in declaration order. The first name is MainLayer.
type LayerNames struct {
	names  []string
	byName map[string]LayerID
}

func NewLayerNames(names ...string) *LayerNames {
	if len(names) > MaxLayers {
		violate(ErrLayerCeiling, "%d layer names", len(names))
	}
	ln := &LayerNames{byName: make(map[string]LayerID, len(names))}
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			violate(ErrInvalidLayerID, "empty layer name at %d", i)
		}
		if _, dup := ln.byName[n]; dup {
			violate(ErrInvalidLayerID, "duplicate layer name %q", n)
		}
		ln.byName[n] = LayerBit(i)
		ln.names = append(ln.names, n)
	}
	return ln
}

func (ln *LayerNames) ID(name string) (LayerID, bool) {
	id, ok := ln.byName[strings.TrimSpace(name)]
	return id, ok
}

func (ln *LayerNames) Name(id LayerID) string {
	if !id.Valid() || id.Index() >= len(ln.names) {
		return ""
	}
	return ln.names[id.Index()]
}

func (ln *LayerNames) Names() []string { return append([]string(nil), ln.names...) }

// All returns the mask of every declared layer.
func (ln *LayerNames) All() LayerMask {
	var m LayerMask
	for i := range ln.names {
		m = m.With(LayerBit(i))
	}
	return m
}
