// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hierenc

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// State is one node of the recurrent final-state structure returned by a
// sub-encoder. It is one of exactly three variants:
//
//   - Leaf: a plain tensor, e.g. the hidden state of a GRU;
//   - CellState: an LSTM-style (memory, hidden) pair;
//   - Stacked: an ordered sequence of states, e.g. one per layer of a stacked
//     RNN, or one per direction of a bidirectional one.
//
// The set of variants is sealed by the unexported marker method.
type State interface {
	state()
}

// Leaf wraps a single tensor state.
type Leaf struct {
	Value *Node
}

// CellState is an LSTM-style state: the cell memory and the hidden (output)
// state, both shaped [batchSize, hiddenSize].
type CellState struct {
	Memory, Hidden *Node
}

// Stacked is an ordered sequence of states.
type Stacked []State

func (Leaf) state()      {}
func (CellState) state() {}
func (Stacked) state()   {}

// Flatten reduces a state structure to a single node:
//
//   - CellState keeps only the hidden state, the memory is discarded;
//   - Stacked flattens each element recursively and concatenates the results
//     along the last (feature) axis, preserving order;
//   - Leaf is returned unchanged, so Flatten is idempotent on already-flat
//     states.
//
// This is the default reduction of the minor encoder's final state when no
// medium is configured -- see HierarchicalEncoder.WithMedium.
func Flatten(state State) *Node {
	switch s := state.(type) {
	case Leaf:
		return s.Value
	case CellState:
		return s.Hidden
	case Stacked:
		if len(s) == 0 {
			Panicf("cannot flatten an empty Stacked state")
		}
		parts := make([]*Node, len(s))
		for ii, sub := range s {
			parts[ii] = Flatten(sub)
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return Concatenate(parts, -1)
	case nil:
		Panicf("cannot flatten a nil State")
	default:
		Panicf("cannot flatten unknown State implementation %T", state)
	}
	return nil
}
