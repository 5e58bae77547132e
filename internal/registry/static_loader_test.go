package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticLoader_LoadAndKnown(t *testing.T) {
	loader := NewStaticLoader()
	loader.Register("pkg.A", func() JobApp { return &fakeApp{id: "a"} })

	app, err := loader.Load("pkg.A")
	assert.NoError(t, err)
	assert.Equal(t, "a", app.Identifier())

	_, err = loader.Load("pkg.Missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"pkg.A"}, loader.Known())
}

func TestStaticLoader_DuplicateRegistrationPanics(t *testing.T) {
	loader := NewStaticLoader()
	loader.Register("pkg.A", func() JobApp { return &fakeApp{id: "a"} })
	assert.Panics(t, func() {
		loader.Register("pkg.A", func() JobApp { return &fakeApp{id: "a"} })
	})
}
