// Package registry resolves configured job identifiers into JobDescriptors.
//
// The registry is a pure function of the configuration lines and the external
// Loader (spec §4.2, §9): it does not touch the state store, and materializing
// the actual job app object from a class path is delegated entirely to Loader,
// which is the pluggable seam spec.md places outside the core's scope.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/crontabber/crontabber/internal/freq"
	"github.com/crontabber/crontabber/internal/runnererr"
)

// JobApp is the external job contract (spec §6). Implementations are resolved
// by a Loader from an opaque class path string.
type JobApp interface {
	Identifier() string
	DependsOn() []string
	IsBackfill() bool
}

// Runnable is a JobApp that executes with no scheduler-supplied arguments.
type Runnable interface {
	JobApp
	Execute(ctx context.Context) error
}

// BackfillRunnable is a JobApp that executes once per owed calendar date.
type BackfillRunnable interface {
	JobApp
	ExecuteDate(ctx context.Context, day time.Time) error
}

// Loader materializes a JobApp from an opaque class path. This is the seam the
// external plugin-loading mechanism occupies; the core never inspects class
// path syntax itself.
type Loader interface {
	Load(classPath string) (JobApp, error)
}

// ConfigLine is one parsed "class_path|frequency[|HH:MM]" entry.
type ConfigLine struct {
	ClassPath string
	Frequency string
	Anchor    string
}

// ParseConfigLine splits a raw configuration line into its pipe-delimited fields.
func ParseConfigLine(raw string) (ConfigLine, error) {
	fields := strings.Split(raw, "|")
	if len(fields) < 2 || len(fields) > 3 {
		return ConfigLine{}, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelBadFrequency,
			"malformed job line %q: want class_path|frequency[|HH:MM]", raw)
	}
	line := ConfigLine{ClassPath: strings.TrimSpace(fields[0]), Frequency: strings.TrimSpace(fields[1])}
	if len(fields) == 3 {
		line.Anchor = strings.TrimSpace(fields[2])
	}
	return line, nil
}

// JobDescriptor is the immutable-per-invocation view of one configured job
// (spec §3).
type JobDescriptor struct {
	Identifier string
	ClassPath  string
	Frequency  time.Duration
	Anchor     *freq.Anchor
	DependsOn  map[string]struct{}
	IsBackfill bool
	App        JobApp
}

// Registry is the resolved, validated set of job descriptors for one invocation.
type Registry struct {
	// Order preserves the original configuration-list position, used by the
	// dependency graph to break topological-sort ties deterministically.
	Order []string
	byID  map[string]*JobDescriptor
}

// Get returns the descriptor for identifier, or false if unknown.
func (r *Registry) Get(identifier string) (*JobDescriptor, bool) {
	d, ok := r.byID[identifier]
	return d, ok
}

// All returns every descriptor in configuration order.
func (r *Registry) All() []*JobDescriptor {
	out := make([]*JobDescriptor, 0, len(r.Order))
	for _, id := range r.Order {
		out = append(out, r.byID[id])
	}
	return out
}

// Build resolves raw configuration lines into a Registry. It loads each class
// path via loader, parses its frequency, and validates the invariants from
// spec §3: no duplicate identifiers, every dependency resolves within the set.
//
// All ConfigErrors encountered are returned together so --configtest and
// --list can report every misconfigured job, not just the first.
func Build(lines []ConfigLine, loader Loader) (*Registry, []error) {
	reg := &Registry{byID: make(map[string]*JobDescriptor)}
	var errs []error

	type pending struct {
		desc *JobDescriptor
	}
	var pendings []pending

	for _, line := range lines {
		app, err := loader.Load(line.ClassPath)
		if err != nil {
			errs = append(errs, runnererr.Newf(runnererr.KindConfigError, "", "loading %q: %v", line.ClassPath, err))
			continue
		}

		f, err := freq.Parse(line.Frequency, line.Anchor)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		id := app.Identifier()
		if _, exists := reg.byID[id]; exists {
			errs = append(errs, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelDuplicateIdentifier,
				"duplicate job identifier %q", id))
			continue
		}

		deps := make(map[string]struct{}, len(app.DependsOn()))
		for _, d := range app.DependsOn() {
			deps[d] = struct{}{}
		}

		desc := &JobDescriptor{
			Identifier: id,
			ClassPath:  line.ClassPath,
			Frequency:  f.Period,
			Anchor:     f.Anchor,
			DependsOn:  deps,
			IsBackfill: app.IsBackfill(),
			App:        app,
		}
		reg.byID[id] = desc
		reg.Order = append(reg.Order, id)
		pendings = append(pendings, pending{desc: desc})
	}

	for _, p := range pendings {
		for dep := range p.desc.DependsOn {
			if _, ok := reg.byID[dep]; !ok {
				errs = append(errs, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelUnknownDependency,
					"job %q depends on unknown job %q", p.desc.Identifier, dep))
			}
		}
	}

	if len(errs) > 0 {
		return reg, errs
	}
	return reg, nil
}
