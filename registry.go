// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hierenc

import (
	"sort"
	"sync"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// Constructor builds an Encoder from the scope it will live in and a loose
// parameter map. Constructors are registered with Register and looked up by
// NewEncoder, so encoders can be chosen by name in configuration.
type Constructor func(ctx *context.Context, params map[string]any) (Encoder, error)

var (
	muRegistry   sync.Mutex
	constructors = make(map[string]Constructor)
)

// Register makes an encoder constructor available to NewEncoder and
// NewFromConfig under the given name. It panics if the name is already taken.
// Typically called from an init function of the implementing package -- the
// rnn sub-package registers "unidirectional_rnn" and "bidirectional_rnn".
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if _, found := constructors[name]; found {
		panic(errors.Errorf("hierenc: encoder type %q registered twice", name))
	}
	constructors[name] = constructor
}

// RegisteredEncoders returns the sorted names of the registered encoder
// types.
func RegisteredEncoders() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEncoder builds a registered encoder type by name. The params map is
// interpreted by the encoder's constructor; defaults usually come from the
// ctx hyperparameters (see e.g. rnn.ParamHiddenSize).
func NewEncoder(name string, ctx *context.Context, params map[string]any) (Encoder, error) {
	muRegistry.Lock()
	constructor, found := constructors[name]
	muRegistry.Unlock()
	if !found {
		return nil, errors.Errorf("hierenc: no encoder type %q registered -- registered types: %v", name, RegisteredEncoders())
	}
	enc, err := constructor(ctx, params)
	if err != nil {
		return nil, errors.WithMessagef(err, "building encoder type %q", name)
	}
	return enc, nil
}

// DefaultEncoderType is the encoder type used by NewFromConfig when a Config
// leaves a type empty. It is provided by the rnn sub-package, which must be
// imported (possibly blank) for it to be registered.
const DefaultEncoderType = "unidirectional_rnn"

// Config declaratively specifies a hierarchical encoder, so it can be built
// from configuration with NewFromConfig. The zero value is valid and selects
// DefaultEncoderType with default parameters for both levels.
type Config struct {
	// MajorType and MajorParams select and parameterize the high-level
	// encoder. An empty type means DefaultEncoderType.
	MajorType   string
	MajorParams map[string]any

	// MinorType and MinorParams select and parameterize the low-level
	// encoder. Ignored when ConfigShare is set.
	MinorType   string
	MinorParams map[string]any

	// ConfigShare constructs the minor encoder with the major encoder's type
	// and parameters.
	ConfigShare bool

	// Order and Medium configure the orchestration, same as WithOrder and
	// WithMedium. Zero values mean OrderBTU and the default flatten medium.
	Order  Order
	Medium []MediumStep
}

// NewFromConfig builds a hierarchical encoder from a declarative Config.
// Each sub-encoder's constructor receives the ctx scope its variables will
// live under, so scoped hyperparameters apply.
func NewFromConfig(ctx *context.Context, cfg Config) (*HierarchicalEncoder, error) {
	majorType := cfg.MajorType
	if majorType == "" {
		majorType = DefaultEncoderType
	}
	minorType, minorParams := cfg.MinorType, cfg.MinorParams
	if cfg.ConfigShare {
		minorType, minorParams = majorType, cfg.MajorParams
	} else if minorType == "" {
		minorType = DefaultEncoderType
	}

	scoped := ctx.In(Scope)
	major, err := NewEncoder(majorType, scoped.In(ScopeMajor), cfg.MajorParams)
	if err != nil {
		return nil, errors.WithMessage(err, "building the major encoder")
	}
	minor, err := NewEncoder(minorType, scoped.In(ScopeMinor), minorParams)
	if err != nil {
		return nil, errors.WithMessage(err, "building the minor encoder")
	}

	h := New(ctx, minor, major).WithMedium(cfg.Medium...)
	if cfg.Order != "" {
		h = h.WithOrder(cfg.Order)
	}
	return h, nil
}
