// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hierenc

import (
	"strings"

	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Argument names recognized by CallOptions, and the 6-character routing
// suffixes of the split convention.
const (
	argSequenceLength = "sequence_length"
	argTimeMajor      = "time_major"
	argInitialState   = "initial_state"

	suffixMinor = "_minor"
	suffixMajor = "_major"
)

// CallOptions is the typed set of per-call arguments delivered to a
// sub-encoder.
type CallOptions struct {
	// SequenceLength holds the used length of each sequence, shaped [outerSize]
	// with an integer dtype. Nil means all sequences are dense.
	SequenceLength *Node

	// TimeMajor indicates whether the input is [length, outerSize, dim] instead
	// of [outerSize, length, dim]. Nil means not set by the caller, and the
	// hierarchical encoder fills it in from its order code.
	TimeMajor *bool

	// InitialState is the starting recurrent state. Nil means all zeros.
	InitialState State

	// Extra holds encoder-specific arguments not covered by the typed fields
	// above. Nil when there are none.
	Extra map[string]any
}

// SplitArgs routes a flat argument map to the minor and major encoders:
// keys ending in "_minor" or "_major" are routed to the corresponding encoder
// with the suffix stripped, and all other keys are broadcast to both.
// A key routed by suffix overrides the broadcast value of the same name.
//
// Afterwards "sequence_length" is set on each side from the dedicated
// per-level arguments, unconditionally overriding any routed value. The
// returned maps therefore always contain "sequence_length" (possibly nil) and
// never contain a routing suffix in any key.
func SplitArgs(args map[string]any, sequenceLengthMinor, sequenceLengthMajor *Node) (minor, major map[string]any) {
	minor, major = make(map[string]any), make(map[string]any)

	// Broadcast pass first, so suffix-routed keys win independently of map
	// iteration order.
	for k, v := range args {
		if strings.HasSuffix(k, suffixMinor) || strings.HasSuffix(k, suffixMajor) {
			continue
		}
		minor[k] = v
		major[k] = v
	}
	for k, v := range args {
		switch {
		case strings.HasSuffix(k, suffixMinor):
			minor[strings.TrimSuffix(k, suffixMinor)] = v
		case strings.HasSuffix(k, suffixMajor):
			major[strings.TrimSuffix(k, suffixMajor)] = v
		}
	}

	minor[argSequenceLength] = sequenceLengthMinor
	major[argSequenceLength] = sequenceLengthMajor
	return
}

// callOptionsFromArgs converts one routed argument map (one of the outputs of
// SplitArgs) to the typed CallOptions delivered to a sub-encoder. Recognized
// names must carry the right type; everything else lands in CallOptions.Extra.
func callOptionsFromArgs(args map[string]any) *CallOptions {
	opts := &CallOptions{}
	for k, v := range args {
		if v == nil {
			continue
		}
		switch k {
		case argSequenceLength:
			n, ok := v.(*Node)
			if !ok {
				Panicf("argument %q must be a *Node, got %T", k, v)
			}
			opts.SequenceLength = n
		case argTimeMajor:
			b, ok := v.(bool)
			if !ok {
				Panicf("argument %q must be a bool, got %T", k, v)
			}
			opts.TimeMajor = &b
		case argInitialState:
			s, ok := v.(State)
			if !ok {
				Panicf("argument %q must be a hierenc.State, got %T", k, v)
			}
			opts.InitialState = s
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[k] = v
		}
	}
	return opts
}
