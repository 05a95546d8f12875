// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hierenc

import (
	"testing"

	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	g := NewGraph(backend, "flatten")
	memory := IotaFull(g, shapes.Make(dtypes.Float32, 2, 3))
	hidden := IotaFull(g, shapes.Make(dtypes.Float32, 2, 3))

	t.Run("CellStateKeepsHiddenOnly", func(t *testing.T) {
		require.Same(t, hidden, Flatten(CellState{Memory: memory, Hidden: hidden}))
	})

	t.Run("LeafIsIdentity", func(t *testing.T) {
		// Idempotent: flattening an already flat state returns it unchanged.
		require.Same(t, hidden, Flatten(Leaf{hidden}))
		require.Same(t, hidden, Flatten(Leaf{Flatten(Leaf{hidden})}))
	})

	t.Run("StackedConcatenatesFeatures", func(t *testing.T) {
		state := Stacked{
			CellState{Memory: memory, Hidden: hidden},
			CellState{Memory: memory, Hidden: hidden},
			CellState{Memory: memory, Hidden: hidden},
		}
		flat := Flatten(state)
		require.NoError(t, flat.Shape().CheckDims(2, 9))
	})

	t.Run("NestedStacks", func(t *testing.T) {
		// Two layers, the second one a bidirectional pair.
		state := Stacked{
			CellState{Memory: memory, Hidden: hidden},
			Stacked{Leaf{hidden}, Leaf{hidden}},
		}
		flat := Flatten(state)
		require.NoError(t, flat.Shape().CheckDims(2, 9))
	})

	t.Run("Invalid", func(t *testing.T) {
		require.Panics(t, func() { Flatten(Stacked{}) })
		require.Panics(t, func() { Flatten(nil) })
	})
}

// TestFlattenOrdering checks the left-to-right concatenation order on actual
// values.
func TestFlattenOrdering(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	exec := MustNewExec(backend, func(h1, h2, h3 *Node) *Node {
		return Flatten(Stacked{
			Leaf{h1},
			CellState{Memory: h1, Hidden: h2},
			Leaf{h3},
		})
	})
	h1 := [][]float32{{1, 2}}
	h2 := [][]float32{{3}}
	h3 := [][]float32{{4, 5}}
	got := exec.MustExec(h1, h2, h3)[0]
	assert.Equal(t, [][]float32{{1, 2, 3, 4, 5}}, got.Value())
}

func TestMedium(t *testing.T) {
	backend := graphtest.BuildTestBackend()

	t.Run("DefaultIsFlatten", func(t *testing.T) {
		g := NewGraph(backend, "medium_default")
		hidden := IotaFull(g, shapes.Make(dtypes.Float32, 2, 3))
		memory := IotaFull(g, shapes.Make(dtypes.Float32, 2, 3))
		got := applyMedium(CellState{Memory: memory, Hidden: hidden}, nil)
		require.Same(t, hidden, got)
	})

	t.Run("StepsApplyInOrder", func(t *testing.T) {
		exec := MustNewExec(backend, func(hidden *Node) *Node {
			double := func(state State) State {
				return Leaf{MulScalar(Flatten(state), 2)}
			}
			plusOne := func(state State) State {
				return Leaf{OnePlus(Flatten(state))}
			}
			return applyMedium(Leaf{hidden}, []MediumStep{FlattenStep, double, plusOne})
		})
		got := exec.MustExec([][]float32{{1, 2}})[0]
		// (x*2)+1, not (x+1)*2.
		assert.Equal(t, [][]float32{{3, 5}}, got.Value())
	})

	t.Run("MustEndInALeaf", func(t *testing.T) {
		g := NewGraph(backend, "medium_not_leaf")
		hidden := IotaFull(g, shapes.Make(dtypes.Float32, 2, 3))
		wrap := func(state State) State { return Stacked{state} }
		require.Panics(t, func() {
			applyMedium(Leaf{hidden}, []MediumStep{wrap})
		})
	})
}
