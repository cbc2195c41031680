package binding

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultExtensions are the file extensions recognized as binding files.
var DefaultExtensions = []string{".yaml"}

// Source lists and opens binding files.
type Source interface {
	// ListFiles returns all binding file paths known to this source, in a
	// stable order.
	ListFiles() ([]string, error)

	// Open opens a path returned by ListFiles.
	// Returns fs.ErrNotExist if the path does not belong to this source.
	Open(path string) (io.ReadCloser, error)
}

// SourceOption configures a source.
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	extensions []string
}

func defaultSourceConfig() sourceConfig {
	return sourceConfig{
		extensions: DefaultExtensions,
	}
}

// WithExtensions sets the file extensions to recognize for this source.
func WithExtensions(exts ...string) SourceOption {
	return func(c *sourceConfig) {
		c.extensions = exts
	}
}

// --- Dir Source (single directory) ---

type dirSource struct {
	path   string
	config sourceConfig
}

// Dir creates a Source for the binding files directly inside path (no
// recursion).
func Dir(path string, opts ...SourceOption) (Source, error) {
	if err := checkDir(path); err != nil {
		return nil, err
	}
	cfg := defaultSourceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &dirSource{path: path, config: cfg}, nil
}

func (s *dirSource) ListFiles() ([]string, error) {
	extSet := makeExtensionSet(s.config.extensions)
	var files []string

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.path, entry.Name())
		if hasValidExtension(path, extSet) {
			files = append(files, path)
		}
	}
	return files, nil
}

func (s *dirSource) Open(path string) (io.ReadCloser, error) {
	if filepath.Dir(path) != filepath.Clean(s.path) {
		return nil, fs.ErrNotExist
	}
	return os.Open(path)
}

// --- DirTree Source (recursive directory, indexed) ---

type treeSource struct {
	root   string
	files  []string
	known  map[string]struct{}
	config sourceConfig
}

// DirTree creates a Source that recursively indexes a directory tree.
// It walks the tree once at construction, in lexical order.
func DirTree(root string, opts ...SourceOption) (Source, error) {
	if err := checkDir(root); err != nil {
		return nil, err
	}

	cfg := defaultSourceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	extSet := makeExtensionSet(cfg.extensions)
	s := &treeSource{root: root, known: make(map[string]struct{}), config: cfg}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasValidExtension(path, extSet) {
			return nil
		}
		s.files = append(s.files, path)
		s.known[path] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *treeSource) ListFiles() ([]string, error) {
	return append([]string(nil), s.files...), nil
}

func (s *treeSource) Open(path string) (io.ReadCloser, error) {
	if _, ok := s.known[path]; !ok {
		return nil, fs.ErrNotExist
	}
	return os.Open(path)
}

// --- FS Source (for embed.FS, testing) ---

type fsSource struct {
	name   string
	fsys   fs.FS
	config sourceConfig

	once  sync.Once
	files []string
	err   error
}

// FS creates a Source backed by an fs.FS (e.g., embed.FS).
// Paths are reported as "name:path". The filesystem is indexed lazily on
// first use.
func FS(name string, fsys fs.FS, opts ...SourceOption) Source {
	cfg := defaultSourceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &fsSource{
		name:   name,
		fsys:   fsys,
		config: cfg,
	}
}

func (s *fsSource) ListFiles() ([]string, error) {
	s.once.Do(func() {
		s.files, s.err = s.buildIndex()
	})
	if s.err != nil {
		return nil, s.err
	}
	files := make([]string, len(s.files))
	for i, path := range s.files {
		files[i] = s.name + ":" + path
	}
	return files, nil
}

func (s *fsSource) Open(path string) (io.ReadCloser, error) {
	rel, ok := strings.CutPrefix(path, s.name+":")
	if !ok {
		return nil, fs.ErrNotExist
	}
	return s.fsys.Open(rel)
}

func (s *fsSource) buildIndex() ([]string, error) {
	extSet := makeExtensionSet(s.config.extensions)
	var files []string

	err := fs.WalkDir(s.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasValidExtension(path, extSet) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// --- Multi Source (combines multiple sources) ---

type multiSource struct {
	sources []Source
}

// Multi combines multiple sources into one. Files are listed source by
// source.
func Multi(sources ...Source) Source {
	return &multiSource{sources: sources}
}

func (s *multiSource) ListFiles() ([]string, error) {
	var files []string
	for _, src := range s.sources {
		f, err := src.ListFiles()
		if err != nil {
			return nil, err
		}
		files = append(files, f...)
	}
	return files, nil
}

func (s *multiSource) Open(path string) (io.ReadCloser, error) {
	for _, src := range s.sources {
		r, err := src.Open(path)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fs.ErrNotExist
}

// --- Helpers ---

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	return nil
}

func makeExtensionSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}

func hasValidExtension(path string, extSet map[string]struct{}) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := extSet[ext]
	return ok
}

// baseName returns the file name an !include refers to. FS paths carry a
// "name:" prefix that must not count.
func baseName(path string) string {
	if i := strings.LastIndexByte(path, ':'); i >= 0 {
		path = path[i+1:]
	}
	return filepath.Base(path)
}
