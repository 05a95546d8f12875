// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hierenc implements a two-level hierarchical sequence encoder for
// GoMLX: a "minor" encoder runs over the short inner sequences (e.g. the
// tokens of each utterance), and a "major" encoder consumes the minor
// encoder's per-segment state summaries to produce a document or session
// level encoding. Useful to encode long structured sequences: paragraphs,
// dialogue histories, etc.
//
// The input is a rank-4 tensor whose three leading axes are the batch, the
// major sequence and the minor sequence in the permutation declared by an
// Order code ("btu" by default). The package takes care of collapsing the
// batch and major axes into one before the minor encoder runs, reducing the
// minor encoder's (possibly nested) final recurrent state to a single tensor
// (see Flatten and MediumStep), and restoring the batch/major split before
// the major encoder runs.
//
// The two sub-encoders are anything satisfying the Encoder contract; the rnn
// sub-package provides LSTM and GRU based implementations. For example:
//
//	minor := rnn.New(64).WithCell(rnn.CellGRU)
//	major := rnn.New(128)
//	enc := hierenc.New(ctx, minor, major)
//	outputs, state := enc.Encode(inputs) // inputs: [batch, turns, tokens, dim]
package hierenc

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"k8s.io/klog/v2"
)

// Encoder is the capability contract both sub-encoders must satisfy.
//
// Implementations build graph nodes, so they panic (see
// github.com/gomlx/exceptions) on invalid inputs rather than return errors.
// Variables they create must live under the given ctx scope, so the
// hierarchical encoder can account for them -- see
// HierarchicalEncoder.Variables.
type Encoder interface {
	// Encode builds the encoding of x, shaped [outerSize, length, dim], or
	// [length, outerSize, dim] when opts.TimeMajor is set. It returns the
	// per-step outputs and the final recurrent state.
	Encode(ctx *context.Context, x *Node, opts *CallOptions) (outputs *Node, finalState State)
}

// Context scopes the hierarchical encoder creates its sub-encoders under.
const (
	// Scope is the root scope of a hierarchical encoder.
	Scope = "hierarchical_encoder"

	// ScopeMinor and ScopeMajor are the child scopes the minor and major
	// encoders build their variables in.
	ScopeMinor = "encoder_minor"
	ScopeMajor = "encoder_major"
)

// HierarchicalEncoder composes a minor and a major sub-encoder into a
// two-level encoder. Create it with New, optionally configure it with the
// With* and SequenceLength* setters, and apply it to an input with Encode.
//
// Construction is the one-time initialization phase; Encode itself is
// stateless graph building and can be called for as many graphs as needed
// (variables are reused through the context, as usual in GoMLX). The only
// mutation Encode performs on the encoder are the two diagnostic attributes,
// see MinorState and ReducedMinorState.
type HierarchicalEncoder struct {
	ctx          *context.Context
	minor, major Encoder

	order       Order
	medium      []MediumStep
	seqLenMinor *Node
	seqLenMajor *Node
	args        map[string]any

	statesMinorBeforeMedium State
	statesMinorAfterMedium  *Node
}

// New initializes a hierarchical encoder over the two given sub-encoders.
// The sub-encoders build their variables under the ctx scopes
// "hierarchical_encoder/encoder_minor" and "hierarchical_encoder/encoder_major".
func New(ctx *context.Context, minor, major Encoder) *HierarchicalEncoder {
	if minor == nil || major == nil {
		Panicf("hierenc.New requires both a minor and a major sub-encoder")
	}
	return &HierarchicalEncoder{
		ctx:   ctx.In(Scope),
		minor: minor,
		major: major,
		order: OrderBTU,
	}
}

// WithOrder sets the axes order of the input tensor, which also decides the
// default time-major layout of each sub-encoder. Default is OrderBTU.
func (h *HierarchicalEncoder) WithOrder(order Order) *HierarchicalEncoder {
	h.order = order
	return h
}

// WithMedium sets the pipeline of steps that reduces the minor encoder's
// final state to the tensor fed to the major encoder. The default (also
// selected by passing no steps) is a single FlattenStep.
func (h *HierarchicalEncoder) WithMedium(steps ...MediumStep) *HierarchicalEncoder {
	h.medium = steps
	return h
}

// SequenceLengthMinor sets the sequence_length delivered to the minor
// encoder. It refers to the flattened view the minor encoder sees, so it must
// have batchSize*majorLen entries (in the axis order given by the order
// code). Nil (the default) means dense sequences.
func (h *HierarchicalEncoder) SequenceLengthMinor(lengths *Node) *HierarchicalEncoder {
	h.seqLenMinor = lengths
	return h
}

// SequenceLengthMajor sets the sequence_length delivered to the major
// encoder, shaped [batchSize]. Nil (the default) means dense sequences.
func (h *HierarchicalEncoder) SequenceLengthMajor(lengths *Node) *HierarchicalEncoder {
	h.seqLenMajor = lengths
	return h
}

// WithArgs sets extra per-call arguments for the sub-encoders, routed with
// SplitArgs: a key ending in "_minor" or "_major" goes to that encoder only
// (suffix stripped), any other key goes to both. An explicit "time_major"
// here overrides the order-derived default; "initial_state_minor" must refer
// to the flattened view, with the batch and major axes collapsed into one.
func (h *HierarchicalEncoder) WithArgs(args map[string]any) *HierarchicalEncoder {
	h.args = args
	return h
}

// EncoderMinor returns the low-level encoder.
func (h *HierarchicalEncoder) EncoderMinor() Encoder { return h.minor }

// EncoderMajor returns the high-level encoder.
func (h *HierarchicalEncoder) EncoderMajor() Encoder { return h.major }

// Encode builds the hierarchical encoding of inputs, a rank-4 tensor whose
// axes follow the configured Order ([batch, majorLen, minorLen, dim] for the
// default OrderBTU).
//
// It reshapes inputs so the minor encoder sees one independent sequence per
// (batch, major step) pair, reduces the minor encoder's final state with the
// medium pipeline, restores the batch/major split and runs the major encoder
// over the per-segment summaries.
//
// It returns the major encoder's outputs and final state. Any failure inside
// a sub-encoder propagates unchanged.
func (h *HierarchicalEncoder) Encode(inputs *Node) (outputs *Node, finalState State) {
	if inputs.Shape().Rank() != 4 {
		Panicf("hierenc: inputs must be rank-4, shaped [batch, majorLen, minorLen, dim] in the order given by the order code, got shape %s", inputs.Shape())
	}
	dims := inputs.Shape().Dimensions
	flattenDims, expandDims, minorTimeMajor, majorTimeMajor := h.order.resolve(dims[0], dims[1], dims[2])

	argsMinor, argsMajor := SplitArgs(h.args, h.seqLenMinor, h.seqLenMajor)
	optsMinor := callOptionsFromArgs(argsMinor)
	optsMajor := callOptionsFromArgs(argsMajor)
	// The order code only provides defaults for time_major: a value routed
	// through WithArgs wins.
	if optsMinor.TimeMajor == nil {
		optsMinor.TimeMajor = &minorTimeMajor
	}
	if optsMajor.TimeMajor == nil {
		optsMajor.TimeMajor = &majorTimeMajor
	}

	flat := Reshape(inputs, flattenDims[0], flattenDims[1], dims[3])
	if klog.V(2).Enabled() {
		klog.Infof("hierenc: order=%q, inputs %s flattened to %s for the minor encoder", h.order, inputs.Shape(), flat.Shape())
	}

	_, statesMinor := h.minor.Encode(h.ctx.In(ScopeMinor), flat, optsMinor)
	h.statesMinorBeforeMedium = statesMinor

	reduced := applyMedium(statesMinor, h.medium)
	h.statesMinorAfterMedium = reduced

	// Restore the batch/major split (or time/batch split, depending on the
	// order) over the reduced per-segment states.
	expandTo := append([]int{expandDims[0], expandDims[1]}, reduced.Shape().Dimensions[1:]...)
	expanded := Reshape(reduced, expandTo...)

	return h.major.Encode(h.ctx.In(ScopeMajor), expanded, optsMajor)
}

// MinorState returns the minor encoder's final state of the last Encode call,
// before the medium pipeline was applied. Diagnostics only, not part of the
// Encode contract.
func (h *HierarchicalEncoder) MinorState() State { return h.statesMinorBeforeMedium }

// ReducedMinorState returns the minor encoder's state of the last Encode
// call, after the medium pipeline reduced it to a single tensor and before it
// was reshaped for the major encoder. Diagnostics only.
func (h *HierarchicalEncoder) ReducedMinorState() *Node { return h.statesMinorAfterMedium }

// Variables returns the variables created by both sub-encoders, minor first.
// Only meaningful once the encoders built their variables, that is, after a
// graph with Encode was built.
func (h *HierarchicalEncoder) Variables() []*context.Variable {
	var vars []*context.Variable
	for _, scope := range []string{ScopeMinor, ScopeMajor} {
		h.ctx.In(scope).EnumerateVariablesInScope(func(v *context.Variable) {
			vars = append(vars, v)
		})
	}
	return vars
}

// NumParameters returns the total number of scalar parameters of both
// sub-encoders. Like Variables, it is only meaningful after a graph with
// Encode was built.
func (h *HierarchicalEncoder) NumParameters() int {
	var total int
	for _, v := range h.Variables() {
		total += v.Shape().Size()
	}
	return total
}
