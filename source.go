package godts

import (
	"io/fs"

	"github.com/golangsnmp/godts/internal/binding"
)

// DefaultExtensions are the file extensions recognized as binding files.
var DefaultExtensions = binding.DefaultExtensions

// Source lists binding files and opens them.
type Source = binding.Source

// SourceOption configures a source.
type SourceOption = binding.SourceOption

// WithExtensions sets the file extensions to recognize for a source.
func WithExtensions(exts ...string) SourceOption {
	return binding.WithExtensions(exts...)
}

// Dir creates a Source for the binding files directly in path, without
// recursion.
func Dir(path string, opts ...SourceOption) (Source, error) {
	return binding.Dir(path, opts...)
}

// MustDir is like Dir but panics on error.
func MustDir(path string, opts ...SourceOption) Source {
	src, err := Dir(path, opts...)
	if err != nil {
		panic(err)
	}
	return src
}

// DirTree creates a Source for every binding file under root. The tree is
// walked once, when DirTree is called.
func DirTree(root string, opts ...SourceOption) (Source, error) {
	return binding.DirTree(root, opts...)
}

// MustDirTree is like DirTree but panics on error.
func MustDirTree(root string, opts ...SourceOption) Source {
	src, err := DirTree(root, opts...)
	if err != nil {
		panic(err)
	}
	return src
}

// FS creates a Source backed by an fs.FS, such as an embed.FS. name
// prefixes the paths reported in diagnostics and errors.
func FS(name string, fsys fs.FS, opts ...SourceOption) Source {
	return binding.FS(name, fsys, opts...)
}

// Multi combines sources. Files are listed in source order.
func Multi(sources ...Source) Source {
	return binding.Multi(sources...)
}
