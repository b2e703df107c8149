package component_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	"github.com/expworld/simkernel/internal/world"
)

func TestRegisterCatalog(t *testing.T) {
	w := world.Init()
	ids, err := component.Register(w)
	require.NoError(t, err)

	assert.Equal(t, []string{"counter", "label", "lifetime", "position", "velocity"}, ids.Kinds())
	id, ok := ids.Lookup("velocity")
	assert.True(t, ok)
	assert.Equal(t, ids.Velocity, id)

	byName, ok := w.Registry().ByName("Position")
	assert.True(t, ok)
	assert.Equal(t, ids.Position, byName)

	again, err := component.Register(w)
	require.NoError(t, err)
	assert.Equal(t, ids.Position, again.Position, "registration is idempotent")
}

func TestDecode(t *testing.T) {
	ids, err := component.Register(world.Init())
	require.NoError(t, err)

	var doc map[string]yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
position: {x: 1.5, y: -2}
label: {name: probe}
counter:
`), &doc))

	pos := doc["position"]
	cv, err := ids.Decode("position", &pos)
	require.NoError(t, err)
	assert.Equal(t, ecs.Value(ids.Position, component.Position{X: 1.5, Y: -2}), cv)

	label := doc["label"]
	cv, err = ids.Decode("label", &label)
	require.NoError(t, err)
	assert.Equal(t, component.Label{Name: "probe"}, cv.Value)

	counter := doc["counter"]
	cv, err = ids.Decode("counter", &counter)
	require.NoError(t, err)
	assert.Nil(t, cv.Value, "empty node means default")

	_, err = ids.Decode("mass", nil)
	assert.ErrorIs(t, err, ecs.ErrUnknownType)

	var bad yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`{x: [1, 2]}`), &bad))
	_, err = ids.Decode("position", bad.Content[0])
	assert.Error(t, err)
}
