// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package mat73

import (
	"io"
	"log/slog"

	"github.com/scigolib/mat73/internal/allocation"
)

// Option configures a File when it is opened.
//
// Example:
//
//	f, err := mat73.Open("run.mat",
//	    mat73.WithLogger(logger),
//	    mat73.WithAllocationPolicy(
//	        mat73.AllocationStrategy(mat73.StrategyShapeMatch),
//	    ),
//	)
type Option func(*options)

const (
	// DefaultMaxDepth bounds nesting of structs and cells.
	DefaultMaxDepth = 64
	// DefaultMinElements is the size an array must exceed to be paired
	// with a timeseries.
	DefaultMinElements = allocation.DefaultMinElements
)

type options struct {
	logger   *slog.Logger
	maxDepth int
	policy   allocation.Policy
	required []string
}

func defaultOptions() options {
	return options{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth: DefaultMaxDepth,
		policy:   allocation.DefaultPolicy(),
		required: []string{"Time", "Data"},
	}
}

// WithLogger sets the logger. By default the library logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxDepth limits how deep structs and cells are followed. Deeper
// elements read as the empty placeholder. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// Strategy selects how timeseries are paired with their data arrays.
type Strategy = allocation.Strategy

// Allocation strategies.
const (
	// StrategyAuto inspects the array shapes and picks one of the others.
	StrategyAuto = allocation.StrategyAuto
	// StrategyAlternating takes arrays two at a time: time, then data.
	StrategyAlternating = allocation.StrategyAlternating
	// StrategyShapeMatch pairs each single-row time array with a column data
	// array at most two positions away.
	StrategyShapeMatch = allocation.StrategyShapeMatch
)

// ParseStrategy parses "auto", "alternating" or "shape-match".
func ParseStrategy(s string) (Strategy, error) {
	return allocation.ParseStrategy(s)
}

// AllocationOption tunes timeseries allocation.
type AllocationOption func(*options)

// WithAllocationPolicy configures the timeseries allocator.
//
// Default configuration if no options provided:
//   - Strategy: StrategyAuto
//   - MinElements: 100
//   - Required properties: Time, Data
func WithAllocationPolicy(opts ...AllocationOption) Option {
	return func(o *options) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

// AllocationStrategy forces a strategy.
func AllocationStrategy(s Strategy) AllocationOption {
	return func(o *options) {
		o.policy.Strategy = s
	}
}

// AllocationMinElements sets the element count an array must exceed to be
// considered timeseries data.
func AllocationMinElements(n int) AllocationOption {
	return func(o *options) {
		if n >= 0 {
			o.policy.MinElements = n
		}
	}
}

// AllocationRequiredProperties sets the properties a class must declare to
// be read as a timeseries.
func AllocationRequiredProperties(names ...string) AllocationOption {
	return func(o *options) {
		if len(names) > 0 {
			o.required = append([]string(nil), names...)
		}
	}
}
