package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	OpSetTile      = "set_tile"
	OpSetEntity    = "set_entity"
	OpRemoveEntity = "remove_entity"
)

// EditEntry is one applied tile edit. Seq increases by one per edit of a map and is the
// revision the map reaches after applying it.
type EditEntry struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	MapID  string    `json:"map_id"`
	Op     string    `json:"op"`
	Layer  uint32    `json:"layer"`
	X      int       `json:"x"`
	Y      int       `json:"y"`
	Value  uint16    `json:"value,omitempty"`
	Entity string    `json:"entity,omitempty"`
}

// EditLog writes the edit journal of one map under <mapDir>/edits.
type EditLog struct{ w *JSONLZstdWriter }

func NewEditLog(mapDir string) *EditLog {
	return &EditLog{w: NewJSONLZstdWriter(JournalDir(mapDir), "edits")}
}

func JournalDir(mapDir string) string { return filepath.Join(mapDir, "edits") }

func (l *EditLog) WriteEdit(e EditEntry) error { return l.w.Write(e) }
func (l *EditLog) Sync() error                 { return l.w.Sync() }
func (l *EditLog) Close() error                { return l.w.Close() }

// JournalFiles lists the journal files in dir, oldest hour first.
func JournalFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "edits-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadJournal decodes every entry of one journal file in write order.
func ReadJournal(path string) ([]EditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []EditEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e EditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, e)
	}
	// A crash mid-write leaves a truncated last frame; the lines before it stand.
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// ReadJournalSince returns the entries of every journal file in dir with Seq > after,
// ordered by Seq.
func ReadJournalSince(dir string, after uint64) ([]EditEntry, error) {
	paths, err := JournalFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []EditEntry
	for _, p := range paths {
		entries, err := ReadJournal(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Seq > after {
				out = append(out, e)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
