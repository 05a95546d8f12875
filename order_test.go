// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hierenc

import (
	"testing"

	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOrderResolve(t *testing.T) {
	// Dims are (d0, d1, d2) = (2, 3, 4) in tensor-axis order.
	tests := []struct {
		order          Order
		flatten        [2]int
		expand         [2]int
		minorTM, majTM bool
	}{
		{OrderBTU, [2]int{6, 4}, [2]int{2, 3}, false, false},
		{OrderUTB, [2]int{2, 12}, [2]int{3, 4}, true, true},
		{OrderTBU, [2]int{6, 4}, [2]int{2, 3}, false, true},
		{OrderUBT, [2]int{2, 12}, [2]int{3, 4}, true, false},
	}
	for _, test := range tests {
		t.Run(string(test.order), func(t *testing.T) {
			flatten, expand, minorTM, majTM := test.order.resolve(2, 3, 4)
			assert.Equal(t, test.flatten, flatten)
			assert.Equal(t, test.expand, expand)
			assert.Equal(t, test.minorTM, minorTM)
			assert.Equal(t, test.majTM, majTM)
		})
	}
}

func TestOrderResolveInvalid(t *testing.T) {
	for _, order := range []Order{"xyz", "", "but", "BTU"} {
		require.Panics(t, func() { order.resolve(2, 3, 4) },
			"order %q should be rejected", order)
	}
}

// TestOrderResolveProperties checks, for random dimensions and all orders,
// that the flattened view preserves the total number of elements and that the
// expand shape restores exactly the two collapsed axes.
func TestOrderResolveProperties(t *testing.T) {
	orders := []Order{OrderBTU, OrderUTB, OrderTBU, OrderUBT}
	rapid.Check(t, func(t *rapid.T) {
		d0 := rapid.IntRange(1, 8).Draw(t, "d0")
		d1 := rapid.IntRange(1, 8).Draw(t, "d1")
		d2 := rapid.IntRange(1, 8).Draw(t, "d2")
		order := rapid.SampledFrom(orders).Draw(t, "order")

		flatten, expand, _, _ := order.resolve(d0, d1, d2)
		if flatten[0]*flatten[1] != d0*d1*d2 {
			t.Fatalf("order %q: flatten %v loses elements of (%d, %d, %d)", order, flatten, d0, d1, d2)
		}
		switch order {
		case OrderBTU, OrderTBU:
			// Axes 0 and 1 are collapsed.
			if flatten != [2]int{d0 * d1, d2} || expand != [2]int{d0, d1} {
				t.Fatalf("order %q: got flatten=%v expand=%v", order, flatten, expand)
			}
		case OrderUTB, OrderUBT:
			// Axes 1 and 2 are collapsed.
			if flatten != [2]int{d0, d1 * d2} || expand != [2]int{d1, d2} {
				t.Fatalf("order %q: got flatten=%v expand=%v", order, flatten, expand)
			}
		}
	})
}

// TestOrderRoundTrip checks the reshape round-trip on data: flattening the
// leading axes and restoring them reproduces the original tensor, for all
// four orders.
func TestOrderRoundTrip(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	for _, order := range []Order{OrderBTU, OrderUTB, OrderTBU, OrderUBT} {
		t.Run(string(order), func(t *testing.T) {
			exec := MustNewExec(backend, func(x *Node) *Node {
				dims := x.Shape().Dimensions
				flatten, expand, _, _ := order.resolve(dims[0], dims[1], dims[2])
				flat := Reshape(x, flatten[0], flatten[1], dims[3])
				var restored *Node
				switch order {
				case OrderBTU, OrderTBU:
					restored = Reshape(flat, expand[0], expand[1], dims[2], dims[3])
				default:
					restored = Reshape(flat, dims[0], expand[0], expand[1], dims[3])
				}
				return ReduceAllMax(Abs(Sub(restored, x)))
			})
			x := iota4D(2, 3, 4, 5)
			got := exec.MustExec(x)[0]
			require.Equal(t, float32(0), tensors.ToScalar[float32](got))
		})
	}
}

// iota4D builds a [d0, d1, d2, d3] tensor counting up from 0.
func iota4D(d0, d1, d2, d3 int) [][][][]float32 {
	var next float32
	value := make([][][][]float32, d0)
	for i0 := range value {
		value[i0] = make([][][]float32, d1)
		for i1 := range value[i0] {
			value[i0][i1] = make([][]float32, d2)
			for i2 := range value[i0][i1] {
				row := make([]float32, d3)
				for i3 := range row {
					row[i3] = next
					next++
				}
				value[i0][i1][i2] = row
			}
		}
	}
	return value
}
