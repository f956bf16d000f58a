package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"sparsetile.ai/internal/encoding"
)

const (
	Version = 1
	Ext     = ".snap.zst"

	KindDense  = "dense"
	KindSparse = "sparse"
)

type Header struct {
	Version  int    `json:"version"`
	MapID    string `json:"map_id"`
	Revision uint64 `json:"revision"`
}

// TilemapV1 is a whole tilemap: conversion settings, the chunk grid shape and every chunk.
type TilemapV1[T comparable] struct {
	Header Header `json:"header"`

	Topology    string `json:"topology"`
	Orientation string `json:"orientation,omitempty"`
	ChunkW      int    `json:"chunk_w"`
	ChunkH      int    `json:"chunk_h"`
	ChunksX     int    `json:"chunks_x"`
	ChunksY     int    `json:"chunks_y"`

	Chunks []ChunkV1[T] `json:"chunks"`
}

type ChunkV1[T comparable] struct {
	X      int          `json:"x"`
	Y      int          `json:"y"`
	W      int          `json:"w"`
	H      int          `json:"h"`
	Layers []LayerV1[T] `json:"layers"`
}

// LayerV1 stores dense layers as runs and sparse layers as explicit tiles.
type LayerV1[T comparable] struct {
	ID       uint32            `json:"id"`
	Kind     string            `json:"kind"`
	Runs     []encoding.Run[T] `json:"runs,omitempty"`
	Tiles    []TileV1[T]       `json:"tiles,omitempty"`
	Entities []EntityV1        `json:"entities,omitempty"`
}

type TileV1[T comparable] struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Value T   `json:"value"`
}

type EntityV1 struct {
	X  int    `json:"x"`
	Y  int    `json:"y"`
	ID string `json:"id"`
}

// Path returns <dir>/<revision>.snap.zst.
func Path(dir string, revision uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d%s", revision, Ext))
}

func Write[T comparable](path string, snap TilemapV1[T]) (err error) {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Read[T comparable](path string) (TilemapV1[T], error) {
	var snap TilemapV1[T]
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	h, err := readHeader(br)
	if err != nil {
		return snap, err
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header != h {
		return snap, fmt.Errorf("header line %+v does not match body %+v", h, snap.Header)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

var ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
