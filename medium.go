// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hierenc

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// MediumStep is one transformation of the "medium", the pipeline that reduces
// the minor encoder's final state to the tensor fed to the major encoder.
// Each step receives the value accumulated so far and returns the next one.
//
// A custom step that produces a plain tensor should wrap it in a Leaf so
// subsequent steps (and the final unwrapping) can consume it.
type MediumStep func(state State) State

// FlattenStep applies Flatten and wraps the result in a Leaf. It is the
// implicit single step of the medium when none is configured.
func FlattenStep(state State) State {
	return Leaf{Flatten(state)}
}

// applyMedium runs the medium steps in order over state and unwraps the final
// Leaf. An empty steps slice means the default pipeline, just FlattenStep.
// The pipeline must end in a Leaf: anything else panics, so a misbehaving
// custom step is reported as such instead of as a reshape error downstream.
func applyMedium(state State, steps []MediumStep) *Node {
	if len(steps) == 0 {
		steps = []MediumStep{FlattenStep}
	}
	for _, step := range steps {
		state = step(state)
	}
	leaf, ok := state.(Leaf)
	if !ok {
		Panicf("medium pipeline must reduce the minor encoder state to a single tensor (a Leaf), got %T", state)
	}
	if leaf.Value == nil {
		Panicf("medium pipeline produced a Leaf with a nil value")
	}
	return leaf.Value
}
