package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"sparsetile.ai/internal/persistence/indexdb"
	"sparsetile.ai/internal/protocol"
	"sparsetile.ai/internal/transport/ws"
)

func newMux(wsSrv *ws.Server, idx *indexdb.SQLiteIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(wsSrv, idx))

	if envBool("TILEMAP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/maps", mapsHandler(wsSrv))
		mux.HandleFunc("/admin/v1/snapshot", snapshotHandler(wsSrv, logger))
	} else {
		logger.Printf("admin endpoints disabled (TILEMAP_ENABLE_ADMIN_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

func metricsHandler(wsSrv *ws.Server, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP tilemap_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE tilemap_clients gauge\n")
		fmt.Fprintf(rw, "tilemap_clients %d\n", wsSrv.Clients())

		fmt.Fprintf(rw, "# HELP tilemap_revision Edits applied to a map.\n")
		fmt.Fprintf(rw, "# TYPE tilemap_revision counter\n")
		for _, id := range wsSrv.Maps() {
			b, _ := wsSrv.Backend(id)
			fmt.Fprintf(rw, "tilemap_revision{map=%q} %d\n", id, b.Info().Revision)
		}

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP tilemap_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE tilemap_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "tilemap_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP tilemap_index_dropped_edits_total Edits dropped by a full index queue.\n")
			fmt.Fprintf(rw, "# TYPE tilemap_index_dropped_edits_total counter\n")
			fmt.Fprintf(rw, "tilemap_index_dropped_edits_total %d\n", st.DropEditTotal)
		}
	}
}

func mapsHandler(wsSrv *ws.Server) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		out := make([]protocol.MapInfo, 0, len(wsSrv.Maps()))
		for _, id := range wsSrv.Maps() {
			b, _ := wsSrv.Backend(id)
			out = append(out, b.Info())
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"maps": out})
	}
}

func snapshotHandler(wsSrv *ws.Server, logger *log.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		id := strings.TrimSpace(r.URL.Query().Get("map"))
		b, ok := wsSrv.Backend(id)
		if !ok {
			rw.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": "unknown map: " + id})
			return
		}
		path, err := b.Snapshot()
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		logger.Printf("admin snapshot %s: %s", id, path)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path, "revision": b.Info().Revision})
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
