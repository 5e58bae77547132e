package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crontabber/crontabber/internal/registry"
	"github.com/crontabber/crontabber/internal/runnererr"
)

func buildRegistry(t *testing.T, lines []registry.ConfigLine, apps map[string]registry.JobApp) *registry.Registry {
	t.Helper()
	loader := &fakeLoader{apps: apps}
	reg, errs := registry.Build(lines, loader)
	assert.Nil(t, errs)
	return reg
}

type fakeLoader struct {
	apps map[string]registry.JobApp
}

func (l *fakeLoader) Load(classPath string) (registry.JobApp, error) {
	return l.apps[classPath], nil
}

type fakeApp struct {
	id        string
	dependsOn []string
}

func (f fakeApp) Identifier() string  { return f.id }
func (f fakeApp) DependsOn() []string { return f.dependsOn }
func (f fakeApp) IsBackfill() bool    { return false }

func TestOrder_RespectsDependenciesAndConfigOrderTiebreak(t *testing.T) {
	apps := map[string]registry.JobApp{
		"pkg.C": fakeApp{id: "c"},
		"pkg.B": fakeApp{id: "b"},
		"pkg.A": fakeApp{id: "a", dependsOn: []string{"b", "c"}},
	}
	lines := []registry.ConfigLine{
		{ClassPath: "pkg.C", Frequency: "1h"},
		{ClassPath: "pkg.B", Frequency: "1h"},
		{ClassPath: "pkg.A", Frequency: "1h"},
	}
	reg := buildRegistry(t, lines, apps)

	order, err := Order(reg)
	assert.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestOrder_DetectsCycle(t *testing.T) {
	apps := map[string]registry.JobApp{
		"pkg.A": fakeApp{id: "a", dependsOn: []string{"b"}},
		"pkg.B": fakeApp{id: "b", dependsOn: []string{"a"}},
	}
	lines := []registry.ConfigLine{
		{ClassPath: "pkg.A", Frequency: "1h"},
		{ClassPath: "pkg.B", Frequency: "1h"},
	}
	reg := buildRegistry(t, lines, apps)

	_, err := Order(reg)
	assert.Error(t, err)
	assert.True(t, runnererr.Is(err, runnererr.KindConfigError))
}

func TestOrder_IndependentJobsKeepConfigOrder(t *testing.T) {
	apps := map[string]registry.JobApp{
		"pkg.Z": fakeApp{id: "z"},
		"pkg.Y": fakeApp{id: "y"},
	}
	lines := []registry.ConfigLine{
		{ClassPath: "pkg.Z", Frequency: "1h"},
		{ClassPath: "pkg.Y", Frequency: "1h"},
	}
	reg := buildRegistry(t, lines, apps)

	order, err := Order(reg)
	assert.NoError(t, err)
	assert.Equal(t, []string{"z", "y"}, order)
}
