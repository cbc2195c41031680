package godts

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golangsnmp/godts/internal/types"
)

type pathOp int

const (
	pathReplace pathOp = iota
	pathAppend
	pathPrepend
)

type pathKind int

const (
	kindBindings pathKind = iota
	kindInclude
)

// searchPaths holds discovered binding and include directories.
type searchPaths struct {
	bindings []string
	include  []string
}

func (sp *searchPaths) get(kind pathKind) *[]string {
	if kind == kindInclude {
		return &sp.include
	}
	return &sp.bindings
}

// DiscoverSystemPaths returns the binding and include directories that
// WithSystemPaths would use.
//
// Each source tree named by ZEPHYR_BASE or DTS_ROOT (colon-separated)
// contributes <root>/dts/bindings, <root>/dts/common and <root>/include.
// /etc/godts.conf and ~/.godtsrc can then adjust the lists with lines of
// the form "bindings DIR[:DIR]..." and "include DIR[:DIR]...". A leading
// '+' on the directive or value appends, a leading '-' prepends, and
// anything else replaces. GODTS_BINDINGS and GODTS_INCLUDE are applied
// last with the same prefixes.
func DiscoverSystemPaths() (bindings, include []string) {
	sp := discoverSystemPaths(types.Logger{})
	return sp.bindings, sp.include
}

// discoverSystemSources returns a DirTree Source for each discovered
// binding directory.
func discoverSystemSources(logger types.Logger, exts []string) []Source {
	var sources []Source
	for _, d := range discoverSystemPaths(logger).bindings {
		src, err := DirTree(d, WithExtensions(exts...))
		if err != nil {
			logger.Log(slog.LevelDebug, "skipping binding directory",
				slog.String("path", d), slog.Any("error", err))
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

// discoverSystemPaths returns binding and include directories from the
// environment and configuration files, deduplicated and filtered to
// directories that exist.
func discoverSystemPaths(logger types.Logger) searchPaths {
	sp := rootDefaults(treeRoots())
	for _, cf := range configFiles() {
		sp = applyConfigFile(cf, sp, logger)
	}
	if v := os.Getenv("GODTS_BINDINGS"); v != "" {
		sp.bindings = applyEnv(v, sp.bindings)
	}
	if v := os.Getenv("GODTS_INCLUDE"); v != "" {
		sp.include = applyEnv(v, sp.include)
	}
	sp.bindings = filterExistingDirs(dedup(sp.bindings))
	sp.include = filterExistingDirs(dedup(sp.include))
	return sp
}

// treeRoots returns the source trees named by ZEPHYR_BASE and DTS_ROOT.
func treeRoots() []string {
	var roots []string
	if v := os.Getenv("ZEPHYR_BASE"); v != "" {
		roots = append(roots, v)
	}
	roots = append(roots, splitPaths(os.Getenv("DTS_ROOT"))...)
	return roots
}

// rootDefaults lays out the conventional directories of each source tree.
func rootDefaults(roots []string) searchPaths {
	var sp searchPaths
	for _, root := range roots {
		sp.bindings = append(sp.bindings, filepath.Join(root, "dts", "bindings"))
		sp.include = append(sp.include,
			filepath.Join(root, "dts", "common"),
			filepath.Join(root, "include"),
		)
	}
	return sp
}

func configFiles() []string {
	files := []string{"/etc/godts.conf"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".godtsrc"))
	}
	return files
}

// parseConfigLine parses a single config file line.
// Supports both "bindings +/path" (prefix on value) and "+bindings /path"
// (prefix on directive). The include directive works the same way.
func parseConfigLine(line string) (pathKind, pathOp, []string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return 0, 0, nil, false
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, nil, false
	}

	directive := fields[0]
	value := fields[1]

	op := pathReplace
	switch directive[0] {
	case '+':
		op = pathAppend
		directive = directive[1:]
	case '-':
		op = pathPrepend
		directive = directive[1:]
	}

	var kind pathKind
	switch directive {
	case "bindings":
		kind = kindBindings
	case "include":
		kind = kindInclude
	default:
		return 0, 0, nil, false
	}

	if op == pathReplace {
		op, value = valueOp(value)
	}
	return kind, op, splitPaths(value), true
}

// valueOp splits a leading + or - off value.
func valueOp(value string) (pathOp, string) {
	if strings.HasPrefix(value, "+") {
		return pathAppend, value[1:]
	}
	if strings.HasPrefix(value, "-") {
		return pathPrepend, value[1:]
	}
	return pathReplace, value
}

func applyEnv(value string, current []string) []string {
	op, value := valueOp(value)
	return applyOp(op, splitPaths(value), current)
}

func applyOp(op pathOp, dirs, current []string) []string {
	switch op {
	case pathAppend:
		return append(current, dirs...)
	case pathPrepend:
		return append(dirs, current...)
	default:
		return dirs
	}
}

func applyConfigFile(path string, current searchPaths, logger types.Logger) searchPaths {
	f, err := os.Open(path)
	if err != nil {
		return current
	}
	defer f.Close() //nolint:errcheck // best-effort config file read

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		kind, op, dirs, ok := parseConfigLine(scanner.Text())
		if !ok {
			continue
		}
		paths := current.get(kind)
		*paths = applyOp(op, dirs, *paths)
	}
	if err := scanner.Err(); err != nil {
		logger.Log(slog.LevelDebug, "error reading config file", slog.String("path", path), slog.Any("error", err))
	}
	return current
}

func splitPaths(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, p := range strings.Split(s, ":") {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func dedup(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var result []string
	for _, p := range paths {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			result = append(result, p)
		}
	}
	return result
}

func filterExistingDirs(paths []string) []string {
	var result []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && info.IsDir() {
			result = append(result, p)
		}
	}
	return result
}
