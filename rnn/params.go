// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rnn

import (
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/hierenc"
	"github.com/pkg/errors"
)

func init() {
	hierenc.Register("unidirectional_rnn", func(ctx *context.Context, params map[string]any) (hierenc.Encoder, error) {
		return FromParams(ctx, params, false)
	})
	hierenc.Register("bidirectional_rnn", func(ctx *context.Context, params map[string]any) (hierenc.Encoder, error) {
		return FromParams(ctx, params, true)
	})
}

// FromParams builds an Encoder from a loose parameter map, as used by the
// hierenc construction registry. Recognized keys: "hidden_size", "num_layers"
// (integers) and "cell" ("lstm" or "gru"). Unknown keys are an error, not
// silently dropped. Defaults for missing keys come from the ctx parameters
// ParamHiddenSize, ParamNumLayers and ParamCellType.
func FromParams(ctx *context.Context, params map[string]any, bidirectional bool) (*Encoder, error) {
	hiddenSize := context.GetParamOr(ctx, ParamHiddenSize, 128)
	numLayers := context.GetParamOr(ctx, ParamNumLayers, 1)
	cellName := context.GetParamOr(ctx, ParamCellType, CellLSTM.String())

	for key, value := range params {
		switch key {
		case "hidden_size":
			v, err := toInt(value)
			if err != nil {
				return nil, errors.WithMessagef(err, "parameter %q", key)
			}
			hiddenSize = v
		case "num_layers":
			v, err := toInt(value)
			if err != nil {
				return nil, errors.WithMessagef(err, "parameter %q", key)
			}
			numLayers = v
		case "cell":
			v, ok := value.(string)
			if !ok {
				return nil, errors.Errorf("parameter \"cell\" must be a string, got %T", value)
			}
			cellName = v
		default:
			return nil, errors.Errorf("unknown parameter %q for an rnn encoder -- valid parameters: hidden_size, num_layers, cell", key)
		}
	}

	cell, err := CellTypeFromString(cellName)
	if err != nil {
		return nil, err
	}
	if hiddenSize <= 0 {
		return nil, errors.Errorf("hidden_size must be positive, got %d", hiddenSize)
	}
	if numLayers < 1 {
		return nil, errors.Errorf("num_layers must be >= 1, got %d", numLayers)
	}
	return New(hiddenSize).WithCell(cell).WithNumLayers(numLayers).Bidirectional(bidirectional), nil
}

// toInt accepts the integer types a parameter map loaded from configuration
// usually carries.
func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, errors.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	}
	return 0, errors.Errorf("expected an integer, got %T", value)
}
