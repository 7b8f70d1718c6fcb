package scripts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"codeberg.org/sigterm-de/boopscript/internal/engine"
	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
)

// ErrScriptNotFound is returned by Catalog.Execute for an unknown name.
var ErrScriptNotFound = errors.New("script not found")

// ChangeKind tells a Catalog how a script file changed on disk.
type ChangeKind int

const (
	Changed ChangeKind = iota // Created or modified; Source holds the new content
	Removed                   // Deleted or renamed away
)

func (k ChangeKind) String() string {
	if k == Removed {
		return "removed"
	}
	return "changed"
}

// ChangeEvent describes one script file change.
type ChangeEvent struct {
	Kind   ChangeKind
	Path   string
	Source string
}

// Catalog holds the available scripts keyed by their declared name. Readers
// share a lock, mutators take it exclusively, and no lock is held while a
// script executes.
type Catalog struct {
	mu      sync.RWMutex
	scripts map[string]*Script
	opts    []engine.HostOption
}

// NewCatalog returns an empty catalog. opts are passed to scripts parsed by
// Apply.
func NewCatalog(opts ...engine.HostOption) *Catalog {
	return &Catalog{scripts: map[string]*Script{}, opts: opts}
}

// Insert adds s, replacing and closing any script with the same name.
func (c *Catalog) Insert(s *Script) {
	c.mu.Lock()
	old := c.scripts[s.Name()]
	c.scripts[s.Name()] = s
	c.mu.Unlock()

	if old != nil && old != s {
		logging.Log(logging.DEBUG, s.Name(), fmt.Sprintf("replacing script from %q", describePath(old)))
		old.Close()
	}
}

// Get returns the script declared under name.
func (c *Catalog) Get(name string) (*Script, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scripts[name]
	return s, ok
}

// Len returns the number of scripts.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scripts)
}

// Names returns all script names in order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := lo.Keys(c.scripts)
	slices.Sort(names)
	return names
}

// All returns all scripts ordered by name.
func (c *Catalog) All() []*Script {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLocked()
}

func (c *Catalog) sortedLocked() []*Script {
	all := lo.Values(c.scripts)
	slices.SortFunc(all, func(a, b *Script) int { return strings.Compare(a.Name(), b.Name()) })
	return all
}

// Search fuzzy matches query against script names, best match first. An
// empty query returns All.
func (c *Catalog) Search(query string) []*Script {
	c.mu.RLock()
	all := c.sortedLocked()
	c.mu.RUnlock()

	if query == "" {
		return all
	}
	matches := fuzzy.FindFrom(query, scriptNames(all))
	return lo.Map(matches, func(m fuzzy.Match, _ int) *Script { return all[m.Index] })
}

// scriptNames implements fuzzy.Source over a script slice.
type scriptNames []*Script

func (s scriptNames) String(i int) string { return s[i].Name() }
func (s scriptNames) Len() int            { return len(s) }

// RemovePath removes every script loaded from path and returns them.
func (c *Catalog) RemovePath(path string) []*Script {
	if path == "" {
		return nil
	}
	c.mu.Lock()
	removed := lo.Filter(lo.Values(c.scripts), func(s *Script, _ int) bool {
		return s.Path() == path
	})
	for _, s := range removed {
		delete(c.scripts, s.Name())
	}
	c.mu.Unlock()

	for _, s := range removed {
		s.Close()
	}
	return removed
}

// Apply updates the catalog for a file change. A changed file is always
// removed first, so a script whose declared name changed does not linger
// under its old name.
func (c *Catalog) Apply(ev ChangeEvent) error {
	removed := c.RemovePath(ev.Path)
	if ev.Kind == Removed {
		for _, s := range removed {
			logging.Log(logging.INFO, s.Name(), "script removed")
		}
		return nil
	}

	s, err := FromSource(ev.Source, ev.Path, c.opts...)
	if err != nil {
		return fmt.Errorf("load %s: %w", ev.Path, err)
	}
	c.Insert(s)
	logging.Log(logging.INFO, s.Name(), "script loaded from "+ev.Path)
	return nil
}

// Execute looks up name and runs it outside the catalog lock.
func (c *Catalog) Execute(name, fullText string, selection *string) (*engine.ExecutionStatus, error) {
	s, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrScriptNotFound, name)
	}
	return s.Execute(fullText, selection)
}

// ResetAll kills every script's runtime, discarding all top-level state.
func (c *Catalog) ResetAll() {
	for _, s := range c.All() {
		s.Kill()
	}
}

// Close releases every script's actor.
func (c *Catalog) Close() {
	for _, s := range c.All() {
		s.Close()
	}
}

func describePath(s *Script) string {
	if s.IsBundled() {
		return "bundled"
	}
	return s.Path()
}
