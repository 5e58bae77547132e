package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crontabber/crontabber/internal/runnererr"
)

type fakeApp struct {
	id        string
	dependsOn []string
	backfill  bool
}

func (f *fakeApp) Identifier() string   { return f.id }
func (f *fakeApp) DependsOn() []string  { return f.dependsOn }
func (f *fakeApp) IsBackfill() bool     { return f.backfill }
func (f *fakeApp) Execute(context.Context) error { return nil }

type fakeLoader struct {
	apps map[string]JobApp
}

func (l *fakeLoader) Load(classPath string) (JobApp, error) {
	app, ok := l.apps[classPath]
	if !ok {
		return nil, runnererr.Newf(runnererr.KindConfigError, "", "unknown class path %q", classPath)
	}
	return app, nil
}

func TestParseConfigLine(t *testing.T) {
	line, err := ParseConfigLine("pkg.JobA|1d|03:00")
	assert.NoError(t, err)
	assert.Equal(t, ConfigLine{ClassPath: "pkg.JobA", Frequency: "1d", Anchor: "03:00"}, line)

	line, err = ParseConfigLine("pkg.JobB|5m")
	assert.NoError(t, err)
	assert.Equal(t, ConfigLine{ClassPath: "pkg.JobB", Frequency: "5m"}, line)

	_, err = ParseConfigLine("pkg.JobC")
	assert.Error(t, err)

	_, err = ParseConfigLine("a|b|c|d")
	assert.Error(t, err)
}

func TestBuild_DuplicateIdentifier(t *testing.T) {
	loader := &fakeLoader{apps: map[string]JobApp{
		"pkg.A": &fakeApp{id: "job-a"},
		"pkg.B": &fakeApp{id: "job-a"},
	}}
	lines := []ConfigLine{{ClassPath: "pkg.A", Frequency: "1h"}, {ClassPath: "pkg.B", Frequency: "1h"}}

	reg, errs := Build(lines, loader)
	assert.Len(t, errs, 1)
	assert.True(t, runnererr.Is(errs[0], runnererr.KindConfigError))
	assert.Len(t, reg.Order, 1)
}

func TestBuild_UnknownDependency(t *testing.T) {
	loader := &fakeLoader{apps: map[string]JobApp{
		"pkg.A": &fakeApp{id: "job-a", dependsOn: []string{"job-missing"}},
	}}
	lines := []ConfigLine{{ClassPath: "pkg.A", Frequency: "1h"}}

	_, errs := Build(lines, loader)
	assert.Len(t, errs, 1)
}

func TestBuild_Success(t *testing.T) {
	loader := &fakeLoader{apps: map[string]JobApp{
		"pkg.A": &fakeApp{id: "job-a"},
		"pkg.B": &fakeApp{id: "job-b", dependsOn: []string{"job-a"}},
	}}
	lines := []ConfigLine{{ClassPath: "pkg.A", Frequency: "1h"}, {ClassPath: "pkg.B", Frequency: "1h"}}

	reg, errs := Build(lines, loader)
	assert.Nil(t, errs)
	assert.Equal(t, []string{"job-a", "job-b"}, reg.Order)

	desc, ok := reg.Get("job-b")
	assert.True(t, ok)
	assert.Contains(t, desc.DependsOn, "job-a")
}
