// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rnn provides recurrent sequence encoders -- LSTM [1] and GRU [2]
// cells -- satisfying the hierenc.Encoder contract.
//
// Since GoMLX doesn't implement loops, the graph size is O(N) on the length
// of the sequence: each step of the recurrence is instantiated as its own
// graph nodes.
//
// [1] https://www.bioinf.jku.at/publications/older/2604.pdf, Hochreiter & Schmidhuber, 1997
// [2] https://arxiv.org/abs/1406.1078, Cho et al., 2014
package rnn

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/hierenc"
	"github.com/pkg/errors"
)

// CellType selects the recurrent cell used by an Encoder.
type CellType int

const (
	// CellLSTM is the default cell. Its final state is a hierenc.CellState.
	CellLSTM CellType = iota

	// CellGRU has a single hidden state, a hierenc.Leaf.
	CellGRU
)

// String implements fmt.Stringer.
func (c CellType) String() string {
	switch c {
	case CellLSTM:
		return "lstm"
	case CellGRU:
		return "gru"
	}
	return "invalid"
}

// CellTypeFromString parses "lstm" or "gru".
func CellTypeFromString(name string) (CellType, error) {
	switch name {
	case "lstm":
		return CellLSTM, nil
	case "gru":
		return CellGRU, nil
	}
	return CellLSTM, errors.Errorf("unknown rnn cell type %q, valid values are \"lstm\" and \"gru\"", name)
}

// Context parameters read by FromParams for defaults. They can be set with
// Context.SetParam in the scope the encoder is built under.
var (
	// ParamHiddenSize is the context parameter with the default hidden size of
	// encoders built from configuration. Defaults to 128.
	ParamHiddenSize = "rnn_hidden_size"

	// ParamNumLayers is the context parameter with the default number of
	// stacked layers. Defaults to 1.
	ParamNumLayers = "rnn_num_layers"

	// ParamCellType is the context parameter with the default cell type,
	// "lstm" or "gru". Defaults to "lstm".
	ParamCellType = "rnn_cell_type"
)

// Encoder is a graph-unrolled recurrent sequence encoder. Create it with New,
// configure it with the With* setters and either use it as a hierenc.Encoder
// or apply it directly with Encode.
//
// The encoder holds configuration only: its weights are context variables
// created (or reused) at each Encode call, under the ctx scope given there.
type Encoder struct {
	hiddenSize    int
	numLayers     int
	cell          CellType
	bidirectional bool
}

// Assert *Encoder satisfies the sub-encoder contract.
var _ hierenc.Encoder = (*Encoder)(nil)

// New creates an encoder with the given hidden size, to be further configured
// and then applied with Encode. Defaults: a single forward LSTM layer.
func New(hiddenSize int) *Encoder {
	return &Encoder{
		hiddenSize: hiddenSize,
		numLayers:  1,
		cell:       CellLSTM,
	}
}

// WithCell sets the recurrent cell type. Default is CellLSTM.
func (e *Encoder) WithCell(cell CellType) *Encoder {
	e.cell = cell
	return e
}

// WithNumLayers sets the number of stacked recurrent layers: each layer
// consumes the per-step outputs of the previous one. Default is 1.
func (e *Encoder) WithNumLayers(numLayers int) *Encoder {
	e.numLayers = numLayers
	return e
}

// Bidirectional runs a reverse pass next to the forward one on every layer.
// Per-step outputs of the two directions are concatenated on the feature
// axis, so the output feature size doubles; the final state of each layer
// becomes a hierenc.Stacked pair (forward, reverse). Default is false.
func (e *Encoder) Bidirectional(bidirectional bool) *Encoder {
	e.bidirectional = bidirectional
	return e
}

// HiddenSize returns the configured hidden size.
func (e *Encoder) HiddenSize() int { return e.hiddenSize }

// Encode implements hierenc.Encoder.
//
// x must be shaped [batchSize, seqLen, featuresSize], or
// [seqLen, batchSize, featuresSize] when opts.TimeMajor is set -- outputs
// follow the same layout, with featuresSize replaced by the hidden size
// (doubled if bidirectional).
//
// The final state nesting follows the configuration: the base state is a
// hierenc.CellState for LSTM cells or a hierenc.Leaf for GRU; bidirectional
// encoders wrap the per-layer pair in a hierenc.Stacked; multi-layer encoders
// wrap the per-layer states in an outer hierenc.Stacked.
//
// opts.InitialState, when given, seeds the first layer and must match the
// state structure of one layer. opts.SequenceLength, shaped [batchSize] with
// an integer dtype, masks steps past each sequence's end: the state stops
// updating there, in either direction.
func (e *Encoder) Encode(ctx *context.Context, x *Node, opts *hierenc.CallOptions) (outputs *Node, finalState hierenc.State) {
	if opts == nil {
		opts = &hierenc.CallOptions{}
	}
	if e.hiddenSize <= 0 {
		Panicf("rnn: hidden size must be positive, got %d", e.hiddenSize)
	}
	if e.numLayers < 1 {
		Panicf("rnn: number of layers must be >= 1, got %d", e.numLayers)
	}
	if x.Shape().Rank() != 3 {
		Panicf("rnn: input must be rank-3, shaped [batchSize, seqLen, featuresSize] (or seq-major with time_major), got shape %s", x.Shape())
	}
	timeMajor := opts.TimeMajor != nil && *opts.TimeMajor
	if timeMajor {
		// The recurrence below works batch-major.
		x = Transpose(x, 0, 1)
	}

	layerInput := x
	layerStates := make([]hierenc.State, 0, e.numLayers)
	for layerIdx := range e.numLayers {
		layerCtx := ctx.Inf("layer_%d", layerIdx)
		var initial hierenc.State
		if layerIdx == 0 {
			initial = opts.InitialState
		}
		if e.bidirectional {
			fwdInitial, bwdInitial := splitBidirectionalInitial(initial)
			fwdOutputs, fwdState := e.scan(layerCtx.In("forward"), layerInput, opts.SequenceLength, fwdInitial, false)
			bwdOutputs, bwdState := e.scan(layerCtx.In("backward"), layerInput, opts.SequenceLength, bwdInitial, true)
			layerInput = Concatenate([]*Node{fwdOutputs, bwdOutputs}, -1)
			layerStates = append(layerStates, hierenc.Stacked{fwdState, bwdState})
		} else {
			var state hierenc.State
			layerInput, state = e.scan(layerCtx, layerInput, opts.SequenceLength, initial, false)
			layerStates = append(layerStates, state)
		}
	}

	outputs = layerInput
	if timeMajor {
		outputs = Transpose(outputs, 0, 1)
	}
	if e.numLayers == 1 {
		finalState = layerStates[0]
	} else {
		finalState = hierenc.Stacked(layerStates)
	}
	return
}

// splitBidirectionalInitial unpacks the initial state of a bidirectional
// layer into its forward and reverse halves.
func splitBidirectionalInitial(initial hierenc.State) (fwd, bwd hierenc.State) {
	if initial == nil {
		return nil, nil
	}
	pair, ok := initial.(hierenc.Stacked)
	if !ok || len(pair) != 2 {
		Panicf("rnn: the initial state of a bidirectional encoder must be a hierenc.Stacked pair (forward, reverse), got %T", initial)
	}
	return pair[0], pair[1]
}
