package registry

import (
	"fmt"
	"sort"
)

// StaticLoader resolves class paths against a table of constructors filled by
// Register calls, in the style of database/sql.Register. The table belongs to
// each StaticLoader value; the package keeps no shared default loader, so a
// job package cannot register itself from its own init function.
type StaticLoader struct {
	factories map[string]func() JobApp
}

// NewStaticLoader returns an empty StaticLoader ready for Register calls.
func NewStaticLoader() *StaticLoader {
	return &StaticLoader{factories: make(map[string]func() JobApp)}
}

// Register adds classPath to the loader's table. It panics on a duplicate
// registration, mirroring sql.Register, since a collision is a programming
// error in the wiring code, not a runtime condition to recover from.
func (l *StaticLoader) Register(classPath string, factory func() JobApp) {
	if _, exists := l.factories[classPath]; exists {
		panic(fmt.Sprintf("registry: class path %q registered twice", classPath))
	}
	l.factories[classPath] = factory
}

// Load implements Loader.
func (l *StaticLoader) Load(classPath string) (JobApp, error) {
	factory, ok := l.factories[classPath]
	if !ok {
		return nil, fmt.Errorf("no job registered for class path %q", classPath)
	}
	return factory(), nil
}

// Known returns every registered class path, sorted, for diagnostics.
func (l *StaticLoader) Known() []string {
	out := make([]string, 0, len(l.factories))
	for k := range l.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
