// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rnn

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/hierenc"
)

// Weight layout per cell type, following the ONNX convention: one row of
// inputsW/recurrentW per gate, input biases first and recurrent biases last
// in biasesW.
//
// LSTM gate rows: 0 input, 1 output, 2 forget, 3 cell update.
// GRU gate rows: 0 update, 1 reset, 2 hidden candidate.
func (e *Encoder) numGates() int {
	if e.cell == CellGRU {
		return 3
	}
	return 4
}

// scan unrolls the recurrent cell over one layer in one direction.
// x must be batch-major, [batchSize, seqLen, featuresSize]. It returns the
// per-step hidden states, [batchSize, seqLen, hiddenSize], and the final
// state (a hierenc.CellState for LSTM, a hierenc.Leaf for GRU).
func (e *Encoder) scan(ctx *context.Context, x *Node, lengths *Node, initial hierenc.State, reverse bool) (outputs *Node, finalState hierenc.State) {
	g := x.Graph()
	dtype := x.DType()
	batchSize := x.Shape().Dim(0)
	seqLen := x.Shape().Dim(1)
	featuresSize := x.Shape().Dim(2)
	hiddenSize := e.hiddenSize
	numGates := e.numGates()

	inputsW := ctx.VariableWithShape("inputsW", shapes.Make(dtype, numGates, hiddenSize, featuresSize)).ValueGraph(g)
	recurrentW := ctx.VariableWithShape("recurrentW", shapes.Make(dtype, numGates, hiddenSize, hiddenSize)).ValueGraph(g)
	biasesW := ctx.VariableWithShape("biasesW", shapes.Make(dtype, 2*numGates, hiddenSize)).ValueGraph(g)

	// All input projections at once.
	// b->batchSize, s->seqLen, f->featuresSize, n->numGates, h->hiddenSize.
	projX := Einsum("bsf,nhf->nbsh", x, inputsW)
	{
		biasX := Slice(biasesW, AxisRangeFromStart(numGates))
		biasX = ExpandAxes(biasX, 1, 2) // Create batchSize and seqLen axes.
		projX = Add(projX, biasX)
	}

	prevHidden, prevCell := e.initialStep(g, dtype, batchSize, initial)

	stepHidden := make([]*Node, seqLen)
	for seqIdx := range seqLen {
		seqPos := seqIdx
		if reverse {
			seqPos = seqLen - 1 - seqIdx
		}

		// Recurrent projections of the previous hidden state, with the
		// recurrent biases: [numGates, batchSize, hiddenSize].
		projState := Einsum("bh,njh->nbj", prevHidden, recurrentW)
		{
			biasState := Slice(biasesW, AxisRangeToEnd(numGates))
			biasState = ExpandAxes(biasState, 1) // Create the batchSize axis.
			projState = Add(projState, biasState)
		}

		// xProj/hProj slice one gate row, shaped [batchSize, hiddenSize].
		xProj := func(gateIdx int) *Node {
			proj := Slice(projX, AxisElem(gateIdx), AxisRange(), AxisElem(seqPos))
			return Reshape(proj, batchSize, hiddenSize)
		}
		hProj := func(gateIdx int) *Node {
			return Squeeze(Slice(projState, AxisElem(gateIdx)), 0)
		}

		var hiddenState, cellState *Node
		switch e.cell {
		case CellLSTM:
			iT := Sigmoid(Add(xProj(0), hProj(0)))
			oT := Sigmoid(Add(xProj(1), hProj(1)))
			fT := Sigmoid(Add(xProj(2), hProj(2)))
			cT := Tanh(Add(xProj(3), hProj(3)))
			cellState = Add(Mul(prevCell, fT), Mul(cT, iT))
			hiddenState = Mul(oT, Tanh(cellState))
		case CellGRU:
			zT := Sigmoid(Add(xProj(0), hProj(0)))
			rT := Sigmoid(Add(xProj(1), hProj(1)))
			nT := Tanh(Add(xProj(2), Mul(rT, hProj(2))))
			hiddenState = Add(Mul(zT, prevHidden), Mul(OneMinus(zT), nT))
		default:
			Panicf("rnn: unknown cell type %d", e.cell)
		}

		// Freeze the state past each sequence's end -- works in both
		// directions.
		if lengths != nil {
			masked := GreaterOrEqual(Scalar(g, lengths.DType(), seqPos), lengths)
			masked = ExpandAxes(masked, -1)
			hiddenState = Where(masked, prevHidden, hiddenState)
			if cellState != nil {
				cellState = Where(masked, prevCell, cellState)
			}
		}

		stepHidden[seqPos] = hiddenState
		prevHidden = hiddenState
		prevCell = cellState
	}

	outputs = Stack(stepHidden, 1)
	if e.cell == CellGRU {
		finalState = hierenc.Leaf{Value: prevHidden}
	} else {
		finalState = hierenc.CellState{Memory: prevCell, Hidden: prevHidden}
	}
	return
}

// initialStep resolves the starting hidden (and, for LSTM, cell) state of a
// scan: zeros unless an initial state with the cell's structure is given.
func (e *Encoder) initialStep(g *Graph, dtype dtypes.DType, batchSize int, initial hierenc.State) (prevHidden, prevCell *Node) {
	zeros := func() *Node {
		return Zeros(g, shapes.Make(dtype, batchSize, e.hiddenSize))
	}
	if initial == nil {
		prevHidden = zeros()
		if e.cell == CellLSTM {
			prevCell = zeros()
		}
		return
	}
	switch e.cell {
	case CellLSTM:
		cs, ok := initial.(hierenc.CellState)
		if !ok {
			Panicf("rnn: the initial state of an LSTM encoder must be a hierenc.CellState, got %T", initial)
		}
		cs.Hidden.AssertDims(batchSize, e.hiddenSize)
		cs.Memory.AssertDims(batchSize, e.hiddenSize)
		prevHidden, prevCell = cs.Hidden, cs.Memory
	case CellGRU:
		leaf, ok := initial.(hierenc.Leaf)
		if !ok {
			Panicf("rnn: the initial state of a GRU encoder must be a hierenc.Leaf, got %T", initial)
		}
		leaf.Value.AssertDims(batchSize, e.hiddenSize)
		prevHidden = leaf.Value
	}
	return
}
