// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// Default configuration values. All bounds are fixed at construction and
// not runtime-negotiable.
const (
	// DefaultMaxTimers is the maximum number of concurrently pending timers.
	// Quite excessive for embedded use, but good for testing.
	DefaultMaxTimers = 4096
	// DefaultMaxDescriptors is the maximum number of watched descriptors.
	DefaultMaxDescriptors = 256
	// DefaultDelayFloor is the minimum timer delay in milliseconds. Smaller
	// or non-positive requested delays are silently raised to this floor.
	DefaultDelayFloor = 1
	// DefaultMinWait is the minimum blocking wait in milliseconds.
	DefaultMinWait = 1
	// DefaultMaxWait is the maximum blocking wait in milliseconds. This
	// bounds how long the loop can go without re-evaluating timer and exit
	// state.
	DefaultMaxWait = 60_000
	// DefaultMaxExpiries caps the number of timers expired per expiry cycle,
	// bounding work when callbacks keep creating newly-due timers.
	DefaultMaxExpiries = 10
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	clock       Clock
	logger      *logiface.Logger[logiface.Event]
	maxTimers   int
	maxFDs      int
	delayFloor  int64
	minWait     int64
	maxWait     int64
	maxExpiries int
}

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (o *optionImpl) applyLoop(opts *loopOptions) error {
	return o.applyLoopFunc(opts)
}

// WithClock sets the monotonic clock used for timer expiry and wait deadline
// computation. Defaults to a clock anchored at construction.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if clock == nil {
			return fmt.Errorf("reactor: WithClock requires a non-nil clock")
		}
		opts.clock = clock
		return nil
	}}
}

// WithLogger sets the structured logger that callback failures and wait
// errors are reported to. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxTimers sets the maximum number of concurrently pending timers.
func WithMaxTimers(n int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return fmt.Errorf("reactor: WithMaxTimers requires a positive count, got %d", n)
		}
		opts.maxTimers = n
		return nil
	}}
}

// WithMaxDescriptors sets the maximum number of watched descriptors.
func WithMaxDescriptors(n int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return fmt.Errorf("reactor: WithMaxDescriptors requires a positive count, got %d", n)
		}
		opts.maxFDs = n
		return nil
	}}
}

// WithDelayFloor sets the minimum timer delay in milliseconds. Requested
// delays below the floor are silently raised to it.
func WithDelayFloor(ms int64) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if ms <= 0 {
			return fmt.Errorf("reactor: WithDelayFloor requires a positive delay, got %d", ms)
		}
		opts.delayFloor = ms
		return nil
	}}
}

// WithWaitBounds sets the minimum and maximum blocking wait in milliseconds.
// The maximum also bounds how long the loop can go without re-evaluating
// timer and exit state.
func WithWaitBounds(minMs, maxMs int64) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if minMs <= 0 || maxMs < minMs {
			return fmt.Errorf("reactor: WithWaitBounds requires 0 < min <= max, got %d, %d", minMs, maxMs)
		}
		opts.minWait = minMs
		opts.maxWait = maxMs
		return nil
	}}
}

// WithMaxExpiries caps the number of timers expired per expiry cycle.
func WithMaxExpiries(n int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return fmt.Errorf("reactor: WithMaxExpiries requires a positive count, got %d", n)
		}
		opts.maxExpiries = n
		return nil
	}}
}

// resolveOptions applies Option instances to loopOptions.
func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		maxTimers:   DefaultMaxTimers,
		maxFDs:      DefaultMaxDescriptors,
		delayFloor:  DefaultDelayFloor,
		minWait:     DefaultMinWait,
		maxWait:     DefaultMaxWait,
		maxExpiries: DefaultMaxExpiries,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}
	return cfg, nil
}
