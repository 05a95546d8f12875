// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hierenc

import (
	. "github.com/gomlx/exceptions"
)

// Order specifies how the three leading axes of the rank-4 input tensor map to
// the batch ('b'), the major sequence ('t') and the minor sequence ('u'), and
// consequently which of the two encoders runs in time-major layout.
//
// Only the four combinations below are valid; anything else panics when the
// encoder is applied.
type Order string

const (
	// OrderBTU is the default: inputs shaped [batch, majorLen, minorLen, dim],
	// both encoders run batch-major.
	OrderBTU Order = "btu"

	// OrderUTB: inputs shaped [minorLen, majorLen, batch, dim], both encoders
	// run time-major.
	OrderUTB Order = "utb"

	// OrderTBU: inputs shaped [majorLen, batch, minorLen, dim], only the major
	// encoder runs time-major.
	OrderTBU Order = "tbu"

	// OrderUBT: inputs shaped [minorLen, batch, majorLen, dim], only the minor
	// encoder runs time-major.
	OrderUBT Order = "ubt"
)

// resolve maps the order code and the three leading dimensions of the input to
// the shapes used around the minor encoder:
//
//   - flattenDims: the 2-axis shape the leading axes are collapsed to before the
//     minor encoder runs, so it sees one independent sequence per (batch, major
//     step) pair;
//   - expandDims: the 2-axis shape used to restore the collapsed axis after the
//     minor encoder's state is reduced, so the major encoder sees one input per
//     major step per batch example;
//   - the time-major flag each encoder defaults to.
//
// An unrecognized order panics.
func (o Order) resolve(d0, d1, d2 int) (flattenDims, expandDims [2]int, minorTimeMajor, majorTimeMajor bool) {
	switch o {
	case OrderBTU:
		flattenDims = [2]int{d0 * d1, d2}
		expandDims = [2]int{d0, d1}
	case OrderUTB:
		flattenDims = [2]int{d0, d1 * d2}
		expandDims = [2]int{d1, d2}
		minorTimeMajor, majorTimeMajor = true, true
	case OrderTBU:
		flattenDims = [2]int{d0 * d1, d2}
		expandDims = [2]int{d0, d1}
		majorTimeMajor = true
	case OrderUBT:
		flattenDims = [2]int{d0, d1 * d2}
		expandDims = [2]int{d1, d2}
		minorTimeMajor = true
	default:
		Panicf("invalid order %q: valid orders are %q, %q, %q and %q",
			o, OrderBTU, OrderUTB, OrderTBU, OrderUBT)
	}
	return
}
