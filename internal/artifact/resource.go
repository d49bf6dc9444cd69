package artifact

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/cmbview/internal/render"
)

// Resource is a handle to one fetched image. Its bytes live in a backing
// file until Release is called.
type Resource struct {
	Model       string
	Generation  uint64
	ContentType string
	Size        int
	Path        string
	Fetched     time.Time

	once     sync.Once
	released atomic.Bool
	err      error
	owner    *Storage
}

// Release removes the backing file. It is safe to call more than once.
func (r *Resource) Release() error {
	r.once.Do(func() {
		r.released.Store(true)
		if err := os.Remove(r.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.err = err
		}
		if r.owner != nil {
			r.owner.live.Add(-1)
		}
	})
	return r.err
}

func (r *Resource) Released() bool { return r.released.Load() }

func (r *Resource) Bytes() ([]byte, error) {
	if r.Released() {
		return nil, ErrReleased
	}
	return os.ReadFile(r.Path)
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s#%d %s %d bytes", r.Model, r.Generation, r.ContentType, r.Size)
}

// Storage places resource bytes under baseDir.
type Storage struct {
	baseDir string
	live    atomic.Int64
}

func NewStorage(baseDir string) *Storage {
	return &Storage{baseDir: baseDir}
}

func (s *Storage) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Storage) Dir() string { return s.baseDir }

// Live is the number of resources written and not yet released.
func (s *Storage) Live() int { return int(s.live.Load()) }

// Write stores img in a new backing file. Names are unique per write, so
// processes sharing baseDir never touch each other's files.
func (s *Storage) Write(model string, generation uint64, img render.Image) (*Resource, error) {
	f, err := os.CreateTemp(s.baseDir, fmt.Sprintf("%s_%d_*%s", model, generation, extension(img.ContentType)))
	if err != nil {
		return nil, fmt.Errorf("artifact: create %s image: %w", model, err)
	}
	path := f.Name()
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("artifact: write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("artifact: write %s: %w", filepath.Base(path), err)
	}
	s.live.Add(1)

	return &Resource{
		Model:       model,
		Generation:  generation,
		ContentType: img.ContentType,
		Size:        len(img.Data),
		Path:        path,
		Fetched:     time.Now(),
		owner:       s,
	}, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/svg+xml":
		return ".svg"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
