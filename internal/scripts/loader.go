package scripts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"codeberg.org/sigterm-de/boopscript/internal/engine"
	"codeberg.org/sigterm-de/boopscript/internal/logging"
)

var (
	// ErrFailedToCreateScriptDirectory means the user scripts directory was
	// missing and could not be created.
	ErrFailedToCreateScriptDirectory = errors.New("failed to create script directory")

	// ErrFailedToReadScriptDirectory means the user scripts directory exists
	// but could not be listed.
	ErrFailedToReadScriptDirectory = errors.New("failed to read script directory")
)

// maxUserScriptBytes caps the size of a single script file read from disk.
const maxUserScriptBytes = 5 * 1024 * 1024

// Origin records where a loaded script came from.
type Origin int

const (
	Bundled Origin = iota
	System
	User
)

func (o Origin) String() string {
	switch o {
	case Bundled:
		return "bundled"
	case System:
		return "system"
	case User:
		return "user"
	default:
		return "unknown"
	}
}

// Dirs lists the directories scripts are loaded from, lowest precedence first.
type Dirs struct {
	System []string // e.g. $XDG_CONFIG_DIRS/boopscript/scripts
	User   string   // created when missing; empty skips user scripts
}

// SkippedFile is a file that was not loaded, with the reason.
type SkippedFile struct {
	Path string
	Err  error
}

// LoadResult summarises a Load call.
type LoadResult struct {
	Skipped []SkippedFile
	Counts  map[Origin]int
}

// Load builds a catalog from the bundled scripts, then each system directory,
// then the user directory. Later sources replace earlier ones by name. Errors
// about the user directory are returned together with the catalog built so
// far; per-file problems are only recorded in the result and the log.
func Load(bundled fs.FS, dirs Dirs, opts ...engine.HostOption) (*Catalog, LoadResult, error) {
	catalog := NewCatalog(opts...)
	result := LoadResult{Counts: map[Origin]int{}}

	if bundled != nil {
		loadBundled(catalog, bundled, &result, opts)
	}
	for _, dir := range dirs.System {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := loadDir(catalog, dir, System, &result, opts); err != nil {
			logging.Log(logging.WARN, "", err.Error())
		}
	}

	if dirs.User == "" {
		return catalog, result, nil
	}
	if err := os.MkdirAll(dirs.User, 0o755); err != nil {
		return catalog, result, fmt.Errorf("%w %s: %w", ErrFailedToCreateScriptDirectory, dirs.User, err)
	}
	if err := loadDir(catalog, dirs.User, User, &result, opts); err != nil {
		return catalog, result, err
	}
	return catalog, result, nil
}

func loadBundled(catalog *Catalog, fsys fs.FS, result *LoadResult, opts []engine.HostOption) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		logging.Log(logging.ERROR, "", "cannot read bundled scripts: "+err.Error())
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".js" {
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			result.skip(entry.Name(), err)
			continue
		}
		s, err := FromSource(string(data), "", opts...)
		if err != nil {
			result.skip(entry.Name(), err)
			continue
		}
		catalog.Insert(s)
		result.Counts[Bundled]++
	}
}

func loadDir(catalog *Catalog, dir string, origin Origin, result *LoadResult, opts []engine.HostOption) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrFailedToReadScriptDirectory, dir, err)
	}

	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !IsScriptFile(p) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			result.skip(p, err)
			continue
		}
		if info.Size() > maxUserScriptBytes {
			result.skip(p, fmt.Errorf("file size %d B exceeds limit of %d B", info.Size(), maxUserScriptBytes))
			continue
		}

		s, err := FromFile(p, opts...)
		if err != nil {
			result.skip(p, err)
			continue
		}
		catalog.Insert(s)
		result.Counts[origin]++
	}
	return nil
}

func (r *LoadResult) skip(p string, err error) {
	logging.Log(logging.WARN, p, "skipping: "+err.Error())
	r.Skipped = append(r.Skipped, SkippedFile{Path: p, Err: err})
}

// SkippedPaths lists the skipped files in load order.
func (r LoadResult) SkippedPaths() []string {
	paths := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		paths[i] = s.Path
	}
	return paths
}

// Total is the number of scripts loaded from all origins, before overlaying.
func (r LoadResult) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// IsScriptFile reports whether p names a script by extension. Hidden editor
// swap and backup files are ignored.
func IsScriptFile(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return filepath.Ext(base) == ".js"
}
