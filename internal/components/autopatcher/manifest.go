package autopatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/zeusync/ecengine/pkg/generic"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// FileEntry is one patched file, addressed relative to the patch root.
type FileEntry struct {
	Path string `yaml:"path"`
	Size int64  `yaml:"size"`
	Hash string `yaml:"hash"`
}

type Manifest struct {
	Version string      `yaml:"version"`
	Files   []FileEntry `yaml:"files"`
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err = yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadManifest, err)
	}
	if err = m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate rejects entries that are empty or would resolve outside the
// patch root.
func (m *Manifest) Validate() error {
	for i, f := range m.Files {
		if f.Path == "" {
			return fmt.Errorf("%w: entry %d has no path", ErrBadManifest, i)
		}
		if !filepath.IsLocal(filepath.FromSlash(f.Path)) {
			return fmt.Errorf("%w: entry %d path %q leaves the patch root", ErrBadManifest, i, f.Path)
		}
	}
	return nil
}

func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var copyBuffers = generic.NewBufferPool(32 << 10)

// HashFile returns the xxhash64 of the file as 16 hex digits, and its size.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	buf := copyBuffers.Get()
	defer copyBuffers.Put(buf)

	h := xxhash.New()
	n, err := io.CopyBuffer(h, f, *buf)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%016x", h.Sum64()), n, nil
}

// BuildManifest hashes the given paths under root. With no paths it walks
// every regular file below root.
func BuildManifest(root, version string, paths ...string) (*Manifest, error) {
	if len(paths) == 0 {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			paths = append(paths, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)

	m := &Manifest{Version: version, Files: make([]FileEntry, 0, len(paths))}
	for _, p := range paths {
		hash, size, err := HashFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", p, err)
		}
		m.Files = append(m.Files, FileEntry{Path: p, Size: size, Hash: hash})
	}
	return m, nil
}

// Report is the outcome of one verification pass. Stale and Missing keep
// manifest order.
type Report struct {
	Version string
	Checked int
	Stale   []string
	Missing []string
}

func (r Report) UpToDate() bool { return len(r.Stale) == 0 && len(r.Missing) == 0 }

type fileStatus uint8

const (
	statusOK fileStatus = iota
	statusStale
	statusMissing
)

// Verify compares the files under root with the manifest using at most
// workers goroutines.
func Verify(ctx context.Context, root string, m *Manifest, workers int) (Report, error) {
	if err := m.Validate(); err != nil {
		return Report{}, err
	}
	if workers <= 0 {
		workers = 1
	}
	status := make([]fileStatus, len(m.Files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range m.Files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(root, filepath.FromSlash(entry.Path))
			info, err := os.Stat(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				status[i] = statusMissing
				return nil
			case err != nil:
				return fmt.Errorf("stat %s: %w", entry.Path, err)
			case info.Size() != entry.Size:
				status[i] = statusStale
				return nil
			}
			hash, _, err := HashFile(path)
			if err != nil {
				return fmt.Errorf("hash %s: %w", entry.Path, err)
			}
			if hash != entry.Hash {
				status[i] = statusStale
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Version: m.Version, Checked: len(m.Files)}
	for i, s := range status {
		switch s {
		case statusStale:
			report.Stale = append(report.Stale, m.Files[i].Path)
		case statusMissing:
			report.Missing = append(report.Missing, m.Files[i].Path)
		}
	}
	return report, nil
}
