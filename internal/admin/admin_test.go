package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/crontabber/crontabber/internal/registry"
	"github.com/crontabber/crontabber/internal/store/memory"
)

type fakeApp struct {
	id        string
	dependsOn []string
}

func (f fakeApp) Identifier() string  { return f.id }
func (f fakeApp) DependsOn() []string { return f.dependsOn }
func (f fakeApp) IsBackfill() bool    { return false }

type fakeLoader struct{ apps map[string]registry.JobApp }

func (l *fakeLoader) Load(classPath string) (registry.JobApp, error) { return l.apps[classPath], nil }

func TestList_JoinsConfigAndState(t *testing.T) {
	apps := map[string]registry.JobApp{"pkg.A": fakeApp{id: "a"}}
	reg, errs := registry.Build([]registry.ConfigLine{{ClassPath: "pkg.A", Frequency: "1h"}}, &fakeLoader{apps: apps})
	assert.Nil(t, errs)

	s := memory.New()
	ctx := context.Background()
	now := time.Now()
	assert.NoError(t, s.UpsertPreRun(ctx, "a", now, now, nil, time.Hour))
	assert.NoError(t, s.CommitSuccess(ctx, "a", now, now.Add(time.Hour), time.Millisecond))

	summaries, err := List(ctx, s, reg)
	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "a", summaries[0].Identifier)
	assert.NotNil(t, summaries[0].LastRun)
	assert.True(t, summaries[0].LastRun.Success)

	text := FormatList(summaries)
	assert.Contains(t, text, "pkg.A")
}

func TestReset_ClearsState(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now()
	assert.NoError(t, s.UpsertPreRun(ctx, "a", now, now, nil, time.Hour))

	assert.NoError(t, Reset(ctx, s, "a"))

	state, err := s.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Nil(t, state)
}

func TestConfigTest_ReportsCycle(t *testing.T) {
	apps := map[string]registry.JobApp{
		"pkg.A": fakeApp{id: "a", dependsOn: []string{"b"}},
		"pkg.B": fakeApp{id: "b", dependsOn: []string{"a"}},
	}
	reg, buildErrs := registry.Build([]registry.ConfigLine{
		{ClassPath: "pkg.A", Frequency: "1h"},
		{ClassPath: "pkg.B", Frequency: "1h"},
	}, &fakeLoader{apps: apps})
	assert.Nil(t, buildErrs)

	errs := ConfigTest(reg, buildErrs)
	assert.Len(t, errs, 1, "cycle should surface as a configtest error")
}
