package dependencies

import (
	"errors"
	"testing"

	"github.com/platinummonkey/morp/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		pkgs      []manifest.Manifest
		wantCycle []string
	}{
		{
			name: "chain is acyclic",
			pkgs: []manifest.Manifest{pkg("A", "B"), pkg("B", "C"), pkg("C")},
		},
		{
			name: "diamond is acyclic",
			pkgs: []manifest.Manifest{pkg("app", "ui", "api"), pkg("ui", "core"), pkg("api", "core"), pkg("core")},
		},
		{
			name: "no edges",
			pkgs: []manifest.Manifest{pkg("a"), pkg("b")},
		},
		{
			name:      "three node cycle",
			pkgs:      []manifest.Manifest{pkg("A", "B"), pkg("B", "C"), pkg("C", "A")},
			wantCycle: []string{"A", "B", "C", "A"},
		},
		{
			name:      "two node cycle",
			pkgs:      []manifest.Manifest{pkg("a", "b"), pkg("b", "a")},
			wantCycle: []string{"a", "b", "a"},
		},
		{
			name:      "self dependency",
			pkgs:      []manifest.Manifest{pkg("self", "self")},
			wantCycle: []string{"self", "self"},
		},
		{
			name:      "cycle behind an acyclic prefix",
			pkgs:      []manifest.Manifest{pkg("app", "x"), pkg("x", "y"), pkg("y", "z"), pkg("z", "x")},
			wantCycle: []string{"x", "y", "z", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(tt.pkgs)
			require.NoError(t, err)

			validated, err := Validate(g)
			if tt.wantCycle == nil {
				require.NoError(t, err)
				assert.Same(t, g, validated)
				assert.True(t, validated.Validated())
				return
			}

			require.Error(t, err)
			assert.Nil(t, validated)
			assert.False(t, g.Validated())
			assert.True(t, errors.Is(err, ErrCyclicDependencies))

			var cyclic *CyclicDependencyError
			require.True(t, errors.As(err, &cyclic))
			assert.Equal(t, tt.wantCycle, cyclic.Cycle)
		})
	}
}

func TestCyclicDependencyError_Message(t *testing.T) {
	err := &CyclicDependencyError{Cycle: []string{"a", "b", "a"}}
	assert.Equal(t, "cyclic dependencies: a -> b -> a", err.Error())

	assert.Equal(t, "cyclic dependencies", (&CyclicDependencyError{}).Error())
}

func TestTopologicalOrder(t *testing.T) {
	g := mustGraph(t,
		pkg("app", "ui", "api"),
		pkg("ui", "core"),
		pkg("api", "core", "lodash"),
		pkg("core"),
		pkg("tools"),
	)

	order, err := TopologicalOrder(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "api", "tools", "ui", "app"}, order)

	position := make(map[string]int)
	for i, name := range order {
		position[name] = i
	}
	for _, e := range g.Edges() {
		assert.Less(t, position[e.To], position[e.From], "%s must come before %s", e.To, e.From)
	}
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	g, err := Build([]manifest.Manifest{pkg("a", "b"), pkg("b", "a"), pkg("c")})
	require.NoError(t, err)

	_, err = TopologicalOrder(g)
	assert.ErrorIs(t, err, ErrCyclicDependencies)
}
