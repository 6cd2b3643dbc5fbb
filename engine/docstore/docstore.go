// Package docstore persists JSON documents as timestamped files in one
// directory and finds the newest document of a kind.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/centinela-gamma/centinela/engine/domain"
)

// Document kinds.
const (
	KindCollection = "centinela_posts"
	KindReport     = "centinela_report"
)

// FileInfo describes a stored document.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// SizeMB returns the size in mebibytes.
func (f FileInfo) SizeMB() float64 { return float64(f.Size) / (1024 * 1024) }

// Store reads and writes documents under Dir.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Save writes v as indented JSON to a new file of the given kind. The write
// goes to a temporary file first and is renamed into place.
func (s *Store) Save(kind string, v any) (FileInfo, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return FileInfo{}, fmt.Errorf("docstore: encode %s: %w", kind, err)
	}
	name := s.nextName(kind)
	tmp, err := os.CreateTemp(s.dir, "."+kind+"-*.tmp")
	if err != nil {
		return FileInfo{}, fmt.Errorf("docstore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return FileInfo{}, fmt.Errorf("docstore: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("docstore: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return FileInfo{}, fmt.Errorf("docstore: rename %s: %w", name, err)
	}
	st, err := os.Stat(name)
	if err != nil {
		return FileInfo{}, fmt.Errorf("docstore: stat %s: %w", name, err)
	}
	s.logger.Info("document saved", "kind", kind, "path", name, "bytes", st.Size())
	return FileInfo{Path: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// nextName picks a timestamped file name that does not exist yet.
func (s *Store) nextName(kind string) string {
	base := fmt.Sprintf("%s_%s", kind, s.now().UTC().Format("20060102_150405"))
	name := filepath.Join(s.dir, base+".json")
	for i := 1; ; i++ {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			return name
		}
		name = filepath.Join(s.dir, fmt.Sprintf("%s_%d.json", base, i))
	}
}

// Latest returns the newest document of kind by modification time, breaking
// ties by the timestamp and sequence number in the name. It returns domain.ErrNotFound when none exists.
func (s *Store) Latest(kind string) (FileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, kind+"_*.json"))
	if err != nil {
		return FileInfo{}, fmt.Errorf("docstore: glob %s: %w", kind, err)
	}
	var files []FileInfo
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		files = append(files, FileInfo{Path: m, Size: st.Size(), ModTime: st.ModTime()})
	}
	if len(files) == 0 {
		return FileInfo{}, fmt.Errorf("docstore: no %s document in %s: %w", kind, s.dir, domain.ErrNotFound)
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		si, ni := nameOrder(files[i].Path, kind)
		sj, nj := nameOrder(files[j].Path, kind)
		if si != sj {
			return si > sj
		}
		return ni > nj
	})
	return files[0], nil
}

// nameOrder splits a document name into its timestamp and the numeric
// suffix nextName adds when several documents share a second.
func nameOrder(path, kind string) (stamp string, seq int) {
	rest := strings.TrimPrefix(strings.TrimSuffix(filepath.Base(path), ".json"), kind+"_")
	const stampLen = len("20060102_150405")
	if len(rest) <= stampLen || rest[stampLen] != '_' {
		return rest, 0
	}
	n, err := strconv.Atoi(rest[stampLen+1:])
	if err != nil {
		return rest, 0
	}
	return rest[:stampLen], n
}

// Load decodes the document at path into v.
func (s *Store) Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("docstore: %s: %w", path, domain.ErrNotFound)
		}
		return fmt.Errorf("docstore: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", path, err)
	}
	return nil
}

// LoadLatest decodes the newest document of kind into v.
func (s *Store) LoadLatest(kind string, v any) (FileInfo, error) {
	fi, err := s.Latest(kind)
	if err != nil {
		return FileInfo{}, err
	}
	if err := s.Load(fi.Path, v); err != nil {
		return FileInfo{}, err
	}
	return fi, nil
}
