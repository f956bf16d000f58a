package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sparsetile.ai/internal/config"
	"sparsetile.ai/internal/persistence/indexdb"
	"sparsetile.ai/internal/service"
	"sparsetile.ai/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/tilemapd.yaml", "server config path (defaults are used if the file does not exist)")
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite snapshot/edit index")
		memOnly    = flag.Bool("memory", false, "keep maps in memory only (no journal, no snapshots)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[tilemapd] ", log.LstdFlags|log.Lmicroseconds)

	path := strings.TrimSpace(*configPath)
	if _, err := os.Stat(path); err != nil {
		logger.Printf("config %s not found; using defaults", path)
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Server.DataDir = *dataDir
	}
	if *disableDB {
		cfg.Server.DisableDB = true
	}

	var idx *indexdb.SQLiteIndex
	if !cfg.Server.DisableDB && !*memOnly {
		idx, err = indexdb.OpenSQLite(filepath.Join(cfg.Server.DataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
	}

	opts := service.Options{
		DataDir:       cfg.Server.DataDir,
		SnapshotEvery: cfg.Server.SnapshotEveryEdits,
		CacheMB:       cfg.Server.ChunkCacheMB,
		Index:         idx,
		Logger:        logger,
	}
	if *memOnly {
		opts.DataDir = ""
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := openMaps(ctx, cfg.Maps, opts)
	if err != nil {
		logger.Fatalf("open maps: %v", err)
	}

	wsSrv := ws.NewServer(backends, cfg.Maps[0].ID, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(wsSrv, idx, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("listening on %s (%d maps)", cfg.Server.Addr, len(backends))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx2)
	})
	serveErr := g.Wait()

	for _, b := range backends {
		if err := b.Close(); err != nil {
			logger.Printf("close map %s: %v", b.ID(), err)
		}
	}
	if idx != nil {
		if err := idx.Close(); err != nil {
			logger.Printf("close index: %v", err)
		}
	}
	if serveErr != nil {
		logger.Fatalf("serve: %v", serveErr)
	}
	logger.Printf("stopped")
}

// openMaps opens every map concurrently. On failure the maps already open are closed.
func openMaps(ctx context.Context, specs []config.MapSpec, opts service.Options) ([]service.Backend, error) {
	backends := make([]service.Backend, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			b, err := service.OpenBackend(gctx, spec, opts)
			if err != nil {
				return err
			}
			backends[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, b := range backends {
			if b != nil {
				_ = b.Close()
			}
		}
		return nil, err
	}
	return backends, nil
}
