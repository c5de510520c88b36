package cache

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/ports"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// fileFormat is the on-disk layout. Unknown fields are ignored on read so
// newer writers stay readable.
type fileFormat struct {
	Version int         `json:"version"`
	Entries []fileEntry `json:"entries"`
}

type fileEntry struct {
	Profile     string `json:"profile"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	ports.DistanceResult
}

const fileVersion = 1

// FileStore keeps the matrix cache in one JSON file. Writes go to a
// temporary file that is renamed over the old one.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load returns an empty map when the file does not exist yet.
func (s *FileStore) Load(ctx context.Context) (_ map[ports.CacheKey]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "matrix.store.file.Load")(&err)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save merges entries into the file.
func (s *FileStore) Save(ctx context.Context, entries map[ports.CacheKey]ports.DistanceResult) (err error) {
	defer obs.Time(ctx, "matrix.store.file.Save")(&err)

	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		var corruption *domain.CacheCorruptionError
		if !errors.As(err, &corruption) {
			return err
		}
		// The corrupt file is replaced wholesale.
		all = make(map[ports.CacheKey]ports.DistanceResult)
	}
	for k, v := range entries {
		all[k] = v
	}

	out := fileFormat{Version: fileVersion, Entries: make([]fileEntry, 0, len(all))}
	for k, v := range all {
		out.Entries = append(out.Entries, fileEntry{Profile: k.Profile, Origin: k.Origin, Destination: k.Destination, DistanceResult: v})
	}
	sort.Slice(out.Entries, func(i, j int) bool {
		a, b := out.Entries[i], out.Entries[j]
		if a.Profile != b.Profile {
			return a.Profile < b.Profile
		}
		if a.Origin != b.Origin {
			return a.Origin < b.Origin
		}
		return a.Destination < b.Destination
	})

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("save matrix cache file: encode: %w", err)
	}
	return writeAtomic(s.Path, data)
}

func (s *FileStore) read() (map[ports.CacheKey]ports.DistanceResult, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[ports.CacheKey]ports.DistanceResult), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read matrix cache file %q: %w", s.Path, err)
	}

	var in fileFormat
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, corrupt(s.Path, err)
	}
	if in.Version > fileVersion {
		return nil, corrupt(s.Path, fmt.Errorf("unsupported version %d", in.Version))
	}

	out := make(map[ports.CacheKey]ports.DistanceResult, len(in.Entries))
	for i, e := range in.Entries {
		if e.Origin == "" || e.Destination == "" || e.DistanceMeters < 0 || e.DurationSeconds < 0 {
			return nil, corrupt(s.Path, fmt.Errorf("malformed entry #%d", i+1))
		}
		out[ports.CacheKey{Profile: e.Profile, Origin: e.Origin, Destination: e.Destination}] = e.DistanceResult
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save matrix cache file: mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save matrix cache file: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save matrix cache file: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save matrix cache file: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save matrix cache file: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save matrix cache file: rename: %w", err)
	}
	return nil
}

func corrupt(source string, err error) error {
	return &domain.CacheCorruptionError{Source: source, Err: err}
}
