package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sparsetile.ai/internal/config"
	"sparsetile.ai/internal/persistence/indexdb"
	tlog "sparsetile.ai/internal/persistence/log"
	"sparsetile.ai/internal/persistence/snapshot"
	"sparsetile.ai/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "build":
		buildCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "replay":
		replayCmd(os.Args[2:])
	case "latest":
		latestCmd(os.Args[2:])
	case "history":
		historyCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tilemapctl build|inspect|replay|latest|history [flags]")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// buildCmd builds maps from their layer files and writes their revision 0 snapshots.
func buildCmd(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "./configs/tilemapd.yaml", "server config path")
	dataDir := fs.String("data", "", "runtime data directory (overrides config)")
	mapID := fs.String("map", "", "map id (default: every map)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("load config: %v", err)
	}
	if *dataDir != "" {
		cfg.Server.DataDir = *dataDir
	}
	specs, err := selectMaps(cfg.Maps, *mapID)
	if err != nil {
		fail("%v", err)
	}

	paths, err := buildMaps(context.Background(), cfg.Server.DataDir, specs)
	if err != nil {
		fail("build: %v", err)
	}
	for i, spec := range specs {
		fmt.Printf("%s\t%s\n", spec.ID, paths[i])
	}
}

func selectMaps(all []config.MapSpec, id string) ([]config.MapSpec, error) {
	if id == "" {
		return all, nil
	}
	for _, m := range all {
		if m.ID == id {
			return []config.MapSpec{m}, nil
		}
	}
	return nil, fmt.Errorf("unknown map %q", id)
}

// buildMaps refuses maps that already have snapshots so a build never shadows
// edited state.
func buildMaps(ctx context.Context, dataDir string, specs []config.MapSpec) ([]string, error) {
	for _, spec := range specs {
		existing, _ := filepath.Glob(filepath.Join(service.SnapshotDir(service.MapDir(dataDir, spec.ID)), "*"+snapshot.Ext))
		if len(existing) > 0 {
			return nil, fmt.Errorf("map %s already has %d snapshots", spec.ID, len(existing))
		}
	}
	paths := make([]string, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			b, err := service.OpenBackend(gctx, spec, service.Options{DataDir: dataDir})
			if err != nil {
				return err
			}
			paths[i] = snapshot.Path(service.SnapshotDir(service.MapDir(dataDir, spec.ID)), 0)
			return b.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	snapPath := fs.String("snapshot", "", "path to .snap.zst")
	headerOnly := fs.Bool("header", false, "print only the header line")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	if *headerOnly {
		h, err := snapshot.ReadHeader(*snapPath)
		if err != nil {
			fail("read header: %v", err)
		}
		fmt.Printf("snapshot v%d map=%s revision=%d\n", h.Version, h.MapID, h.Revision)
		return
	}
	snap, err := snapshot.Read[uint16](*snapPath)
	if err != nil {
		fail("read snapshot: %v", err)
	}
	sum, err := summarize(snap)
	if err != nil {
		fail("inspect: %v", err)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum)
		return
	}
	fmt.Print(sum.String())
}

func replayCmd(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	mapID := fs.String("map", "", "map id")
	after := fs.Uint64("after", 0, "only entries with seq > after")
	summary := fs.Bool("summary", false, "print counts per op instead of entries")
	_ = fs.Parse(args)

	if strings.TrimSpace(*mapID) == "" {
		fmt.Fprintln(os.Stderr, "missing -map")
		os.Exit(2)
	}
	entries, err := tlog.ReadJournalSince(tlog.JournalDir(service.MapDir(*dataDir, *mapID)), *after)
	if err != nil {
		fail("read journal: %v", err)
	}
	if *summary {
		fmt.Print(summarizeJournal(entries))
		return
	}
	for _, e := range entries {
		fmt.Println(formatEdit(e))
	}
}

func latestCmd(args []string) {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	mapID := fs.String("map", "", "map id")
	_ = fs.Parse(args)

	if strings.TrimSpace(*mapID) == "" {
		fmt.Fprintln(os.Stderr, "missing -map")
		os.Exit(2)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
	if err != nil {
		fail("open index: %v", err)
	}
	defer idx.Close()
	row, ok, err := idx.LatestSnapshot(context.Background(), *mapID)
	if err != nil {
		fail("query: %v", err)
	}
	if !ok {
		fmt.Printf("no snapshots recorded for %s\n", *mapID)
		return
	}
	fmt.Printf("%s revision=%d %s %dx%d chunks=%d layers=%d recorded=%s\n  %s\n",
		row.MapID, row.Revision, row.Topology, row.Width, row.Height, row.Chunks, row.Layers,
		row.RecordedAt.Format(time.RFC3339), row.Path)
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	mapID := fs.String("map", "", "map id")
	x := fs.Int("x", 0, "cell x")
	y := fs.Int("y", 0, "cell y")
	_ = fs.Parse(args)

	if strings.TrimSpace(*mapID) == "" {
		fmt.Fprintln(os.Stderr, "missing -map")
		os.Exit(2)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
	if err != nil {
		fail("open index: %v", err)
	}
	defer idx.Close()
	n, err := idx.EditCount(context.Background(), *mapID, *x, *y)
	if err != nil {
		fail("query: %v", err)
	}
	fmt.Printf("%s (%d,%d) edits=%d\n", *mapID, *x, *y, n)
}

func formatEdit(e tlog.EditEntry) string {
	s := fmt.Sprintf("%d\t%s\t%s\tlayer=%d\t(%d,%d)", e.Seq, e.Time.Format(time.RFC3339Nano), e.Op, e.Layer, e.X, e.Y)
	switch e.Op {
	case tlog.OpSetTile:
		s += fmt.Sprintf("\tvalue=%d", e.Value)
	default:
		s += "\tentity=" + e.Entity
	}
	return s
}

func summarizeJournal(entries []tlog.EditEntry) string {
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Op]++
	}
	ops := make([]string, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	var b strings.Builder
	fmt.Fprintf(&b, "entries=%d", len(entries))
	if len(entries) > 0 {
		fmt.Fprintf(&b, " seq=%d..%d", entries[0].Seq, entries[len(entries)-1].Seq)
	}
	b.WriteByte('\n')
	for _, op := range ops {
		fmt.Fprintf(&b, "  %s=%d\n", op, counts[op])
	}
	return b.String()
}
