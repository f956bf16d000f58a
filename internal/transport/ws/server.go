package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sparsetile.ai/internal/protocol"
	"sparsetile.ai/internal/service"
)

type Server struct {
	maps       map[string]service.Backend
	defaultMap string
	log        *log.Logger

	upgrader websocket.Upgrader
	clients  atomic.Int64
}

// NewServer serves backends by map id. HELLO without a map_id selects defaultMap.
func NewServer(backends []service.Backend, defaultMap string, logger *log.Logger) *Server {
	s := &Server{
		maps:       make(map[string]service.Backend, len(backends)),
		defaultMap: defaultMap,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	for _, b := range backends {
		s.maps[b.ID()] = b
	}
	return s
}

func (s *Server) Clients() int64 { return s.clients.Load() }

// Maps returns the served map ids in order.
func (s *Server) Maps() []string {
	ids := make([]string, 0, len(s.maps))
	for id := range s.maps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) Backend(id string) (service.Backend, bool) {
	b, ok := s.maps[id]
	return b, ok
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, out, welcome := s.handshake(conn)
		if sess == nil {
			return
		}
		s.clients.Add(1)
		defer s.clients.Add(-1)
		s.log.Printf("session %s joined map %s", welcome.SessionID, welcome.Map.MapID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res := s.dispatch(sess, msg)
			b, err := json.Marshal(res)
			if err != nil {
				s.log.Printf("session %s: encode result: %v", welcome.SessionID, err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		s.log.Printf("session %s left", welcome.SessionID)
	}
}

func (s *Server) dispatch(sess service.Session, msg []byte) protocol.ResultMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.Fail("", protocol.ErrProtoBadRequest, "bad json: "+err.Error())
	}
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.Fail("", protocol.ErrProtoBadRequest, "bad request: "+err.Error())
	}
	if !protocol.IsRequestType(base.Type) {
		return protocol.Fail(req.ID, protocol.ErrProtoBadRequest, "unknown type: "+base.Type)
	}
	return sess.Handle(req)
}

func (s *Server) handshake(conn *websocket.Conn) (service.Session, chan []byte, protocol.WelcomeMsg) {
	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, welcome
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return nil, nil, welcome
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return nil, nil, welcome
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil, nil, welcome
	}

	mapID := hello.MapID
	if mapID == "" {
		mapID = s.defaultMap
	}
	b, ok := s.maps[mapID]
	if !ok {
		_ = writeJSON(conn, protocol.Fail("", protocol.ErrMapNotFound, "unknown map_id: "+mapID))
		closeWith(conn, "unknown map_id")
		return nil, nil, welcome
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}

	welcome = protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Map:             b.Info(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil, nil, welcome
	}
	return b.NewSession(), make(chan []byte, maxQ), welcome
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
