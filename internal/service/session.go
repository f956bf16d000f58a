package service

import (
	"errors"
	"fmt"

	"sparsetile.ai/internal/encoding"
	tlog "sparsetile.ai/internal/persistence/log"
	"sparsetile.ai/internal/protocol"
	"sparsetile.ai/internal/tilemap"
)

// Session is one client's view of a map. Each session has its own active layer.
type Session interface {
	Handle(req protocol.Request) protocol.ResultMsg
}

type session[C tilemap.Converter] struct {
	m   *Map[C]
	mgr *tilemap.Manager[uint16, C]
}

func (m *Map[C]) NewSession() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	mgr, err := tilemap.NewManager[uint16, C](m.world, m.handle)
	if err != nil {
		// The map handle is fixed at Open.
		panic(err)
	}
	return &session[C]{m: m, mgr: mgr}
}

func (s *session[C]) Handle(req protocol.Request) (res protocol.ResultMsg) {
	snapshotDue := false
	func() {
		s.m.mu.Lock()
		defer s.m.mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				s.m.logger.Printf("map %s: %s panicked: %v", s.m.id, req.Type, r)
				res = protocol.Fail(req.ID, protocol.ErrInternal, fmt.Sprint(r))
			}
		}()
		res, snapshotDue = s.handleLocked(req)
	}()
	if snapshotDue {
		// ErrMapClosed means Close already wrote the final snapshot.
		switch path, err := s.m.Snapshot(); {
		case err == nil:
			s.m.logger.Printf("map %s: snapshot %s", s.m.id, path)
		case !errors.Is(err, ErrMapClosed):
			s.m.logger.Printf("map %s: periodic snapshot: %v", s.m.id, err)
		}
	}
	return res
}

func (s *session[C]) handleLocked(req protocol.Request) (protocol.ResultMsg, bool) {
	if s.m.closed {
		return failure(req.ID, ErrMapClosed), false
	}
	cell := tilemap.Cell{X: req.X, Y: req.Y}
	layer := s.mgr.CurrentLayer()
	switch req.Type {
	case protocol.TypeGetTile:
		v, err := s.mgr.TileData(cell)
		if err != nil {
			return failure(req.ID, err), false
		}
		res := protocol.OK(req.ID)
		res.Value = &v
		return res, false

	case protocol.TypeSetTile:
		if err := s.mgr.SetTileData(cell, req.Value); err != nil {
			return failure(req.ID, err), false
		}
		due := s.m.commit(tlog.OpSetTile, layer, cell, req.Value, tilemap.NilEntity)
		v := req.Value
		res := protocol.OK(req.ID)
		res.Value = &v
		return res, due

	case protocol.TypeGetEntity:
		e, err := s.mgr.TileEntity(cell)
		if err != nil {
			return failure(req.ID, err), false
		}
		res := protocol.OK(req.ID)
		res.Entity = e.String()
		return res, false

	case protocol.TypeEnsureEntity:
		e, created, err := s.mgr.GetOrCreateTileEntity(cell)
		if err != nil {
			return failure(req.ID, err), false
		}
		due := false
		if created {
			due = s.m.commit(tlog.OpSetEntity, layer, cell, 0, e)
		}
		res := protocol.OK(req.ID)
		res.Entity = e.String()
		res.Created = created
		return res, due

	case protocol.TypeRemoveEntity:
		e, err := s.mgr.RemoveTileEntity(cell)
		if err != nil {
			return failure(req.ID, err), false
		}
		due := s.m.commit(tlog.OpRemoveEntity, layer, cell, 0, e)
		res := protocol.OK(req.ID)
		res.Entity = e.String()
		return res, due

	case protocol.TypeSetLayer:
		id, ok := s.m.names.ID(req.Layer)
		if !ok {
			return protocol.Fail(req.ID, protocol.ErrLayerNotFound, fmt.Sprintf("no layer named %q", req.Layer)), false
		}
		s.mgr.SetLayer(id)
		res := protocol.OK(req.ID)
		res.Layer = s.m.names.Name(id)
		return res, false

	case protocol.TypeDimensions:
		d, err := s.mgr.Dimensions()
		if err != nil {
			return failure(req.ID, err), false
		}
		res := protocol.OK(req.ID)
		res.Width, res.Height = d.X, d.Y
		return res, false

	case protocol.TypeGetChunk:
		view, err := s.chunkView(tilemap.ChunkPos{X: req.X, Y: req.Y})
		if err != nil {
			return failure(req.ID, err), false
		}
		res := protocol.OK(req.ID)
		res.Chunk = view
		return res, false

	default:
		return protocol.Fail(req.ID, protocol.ErrBadRequest, "unknown request type: "+req.Type), false
	}
}

func (s *session[C]) chunkView(pos tilemap.ChunkPos) (*protocol.ChunkView, error) {
	tm, ok := s.m.world.Tilemap(s.mgr.Target())
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", tilemap.ErrTilemapNotFound, s.mgr.Target())
	}
	ch, err := s.mgr.Chunk(pos.Origin(tm.MaxChunkSize()))
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d,%d@%d", pos.X, pos.Y, ch.Revision())
	if s.m.cache != nil {
		if v, ok := s.m.cache.Get(key); ok {
			return v, nil
		}
	}
	view, cost := buildChunkView(ch, s.m.names)
	if s.m.cache != nil {
		s.m.cache.Set(key, view, cost)
		s.m.cache.Wait()
	}
	return view, nil
}

// buildChunkView returns the view and its approximate size in bytes.
func buildChunkView[C tilemap.Converter](ch *tilemap.Chunk[uint16, C], names *tilemap.LayerNames) (*protocol.ChunkView, int64) {
	dims := ch.Dimensions()
	pos := ch.Position()
	view := &protocol.ChunkView{X: pos.X, Y: pos.Y, W: dims.X, H: dims.Y, Revision: ch.Revision()}
	cost := int64(64)
	for _, id := range ch.Layers().Layers() {
		st, _ := ch.Storage(id)
		lv := protocol.LayerView{Name: names.Name(id), Kind: st.Kind().String()}
		if lv.Name == "" {
			lv.Name = fmt.Sprintf("layer%d", id.Index())
		}
		switch st.Kind() {
		case tilemap.StorageDense:
			lv.RLE = encoding.EncodeRLE(st.Values())
			cost += int64(len(lv.RLE))
		default:
			for _, e := range st.SparseEntries() {
				lv.Tiles = append(lv.Tiles, protocol.TileView{X: e.Pos.X, Y: e.Pos.Y, Value: e.Value})
			}
			cost += int64(len(lv.Tiles)) * 24
		}
		for _, e := range st.Entities() {
			lv.Entities = append(lv.Entities, protocol.EntityView{X: e.Pos.X, Y: e.Pos.Y, ID: e.Entity.String()})
		}
		cost += int64(len(lv.Entities)) * 56
		view.Layers = append(view.Layers, lv)
	}
	return view, cost
}

func failure(id string, err error) protocol.ResultMsg {
	return protocol.Fail(id, Code(err), err.Error())
}

// Code maps engine errors to protocol error codes.
func Code(err error) string {
	switch {
	case errors.Is(err, tilemap.ErrInvalidChunkPosition):
		return protocol.ErrInvalidChunkPos
	case errors.Is(err, tilemap.ErrTileDataDoesNotExist):
		return protocol.ErrNoTileData
	case errors.Is(err, tilemap.ErrTileEntityDoesNotExist):
		return protocol.ErrNoTileEntity
	case errors.Is(err, tilemap.ErrLayerNotFound):
		return protocol.ErrLayerNotFound
	default:
		return protocol.ErrInternal
	}
}
