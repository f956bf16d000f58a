package main

import (
	"fmt"
	"strings"

	"sparsetile.ai/internal/persistence/snapshot"
	"sparsetile.ai/internal/slots"
	"sparsetile.ai/internal/tilemap"
)

type layerSummary struct {
	ID       uint32 `json:"id"`
	Kind     string `json:"kind"`
	Tiles    int    `json:"tiles"`
	Entities int    `json:"entities"`
}

type snapshotSummary struct {
	MapID       string         `json:"map_id"`
	Revision    uint64         `json:"revision"`
	Topology    string         `json:"topology"`
	Orientation string         `json:"orientation,omitempty"`
	ChunkSize   [2]int         `json:"chunk_size"`
	ChunkCounts [2]int         `json:"chunk_counts"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Layers      []layerSummary `json:"layers"`
}

// summarize imports snap into a scratch host, so it also checks that the snapshot loads.
func summarize(snap snapshot.TilemapV1[uint16]) (snapshotSummary, error) {
	sum := snapshotSummary{
		MapID:       snap.Header.MapID,
		Revision:    snap.Header.Revision,
		Topology:    snap.Topology,
		Orientation: snap.Orientation,
		ChunkSize:   [2]int{snap.ChunkW, snap.ChunkH},
		ChunkCounts: [2]int{snap.ChunksX, snap.ChunksY},
	}
	var (
		size tilemap.Size
		err  error
	)
	switch tilemap.Topology(snap.Topology) {
	case tilemap.TopologySquare:
		size, err = importedSize[tilemap.SquareSettings](snap)
	case tilemap.TopologyHex:
		size, err = importedSize[tilemap.HexSettings](snap)
	default:
		err = fmt.Errorf("unknown topology %q", snap.Topology)
	}
	if err != nil {
		return sum, err
	}
	sum.Width, sum.Height = size.X, size.Y

	byID := map[uint32]*layerSummary{}
	for _, ch := range snap.Chunks {
		for _, l := range ch.Layers {
			ls, ok := byID[l.ID]
			if !ok {
				ls = &layerSummary{ID: l.ID, Kind: l.Kind}
				byID[l.ID] = ls
			}
			if l.Kind == snapshot.KindDense {
				ls.Tiles += ch.W * ch.H
			} else {
				ls.Tiles += len(l.Tiles)
			}
			ls.Entities += len(l.Entities)
		}
	}
	for _, id := range tilemap.LayerMask(maskOf(byID)).Layers() {
		sum.Layers = append(sum.Layers, *byID[uint32(id)])
	}
	return sum, nil
}

func maskOf(byID map[uint32]*layerSummary) uint32 {
	var m uint32
	for id := range byID {
		m |= id
	}
	return m
}

func importedSize[C tilemap.Converter](snap snapshot.TilemapV1[uint16]) (tilemap.Size, error) {
	w := slots.New[uint16, C]()
	h, err := tilemap.ImportTilemap[uint16, C](snap, w)
	if err != nil {
		return tilemap.Size{}, err
	}
	mgr, err := tilemap.NewManager[uint16, C](w, h)
	if err != nil {
		return tilemap.Size{}, err
	}
	return mgr.Dimensions()
}

func (s snapshotSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot map=%s revision=%d\n", s.MapID, s.Revision)
	fmt.Fprintf(&b, "  topology=%s", s.Topology)
	if s.Orientation != "" {
		fmt.Fprintf(&b, " orientation=%s", s.Orientation)
	}
	fmt.Fprintf(&b, " chunk=%dx%d chunks=%dx%d size=%dx%d\n", s.ChunkSize[0], s.ChunkSize[1], s.ChunkCounts[0], s.ChunkCounts[1], s.Width, s.Height)
	for _, l := range s.Layers {
		fmt.Fprintf(&b, "  layer %d %s tiles=%d entities=%d\n", tilemap.LayerID(l.ID).Index(), l.Kind, l.Tiles, l.Entities)
	}
	return b.String()
}
