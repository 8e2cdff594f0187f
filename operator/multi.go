//
// Tencent is pleased to support the open source community by making trpc-opflow-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package operator

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ExecMode declares how a fan-out operator dispatches its replicas.
type ExecMode string

// Fan-out execution modes.
const (
	// ModeThread runs one goroutine per replica.
	ModeThread ExecMode = "thread"
	// ModeProcess runs replicas on a bounded worker pool.
	ModeProcess ExecMode = "process"
	// ModeRemote submits replicas through a remote-execution handle.
	ModeRemote ExecMode = "remote"
)

// RemoteHandle executes one unit of work remotely, blocking until completion
// or context cancellation.
type RemoteHandle interface {
	Submit(ctx context.Context, in Values) (Values, error)
}

type multiConfig struct {
	handle   RemoteHandle
	poolSize int
}

// MultiOption configures NewMulti.
type MultiOption func(*multiConfig)

// WithRemoteHandle binds the remote-execution handle. Required for
// ModeRemote.
func WithRemoteHandle(h RemoteHandle) MultiOption {
	return func(c *multiConfig) {
		c.handle = h
	}
}

// WithPoolSize sets the worker pool size for ModeProcess. Defaults to the
// number of CPUs.
func WithPoolSize(n int) MultiOption {
	return func(c *multiConfig) {
		c.poolSize = n
	}
}

// NewMulti wraps op in a fan-out operator named "Multi_<mode>" that runs op
// n times and joins all results under the "results" key. ModeRemote requires
// a remote handle; construction fails without one. Cancellation propagates
// through the replicas and discards partial results.
//
// The fan-out forward declares a single "inputs" parameter. It accepts a
// []Values of length n for per-replica inputs, a single Values shared by
// every replica, or nil for replicas without inputs.
func NewMulti(op *Operator, n int, mode ExecMode, opts ...MultiOption) (*Operator, error) {
	if op == nil {
		return nil, fmt.Errorf("multi: wrapped operator must not be nil")
	}
	if n < 1 {
		return nil, fmt.Errorf("multi: replica count must be at least 1, got %d", n)
	}
	cfg := multiConfig{poolSize: runtime.NumCPU()}
	for _, o := range opts {
		o(&cfg)
	}
	switch mode {
	case ModeThread, ModeProcess:
	case ModeRemote:
		if cfg.handle == nil {
			return nil, fmt.Errorf("multi: mode %q requires a remote handle", mode)
		}
	default:
		return nil, fmt.Errorf("multi: mode must be %q, %q or %q, got %q",
			ModeThread, ModeProcess, ModeRemote, mode)
	}

	multi := New("Multi_"+string(mode), WithForward(&Forward{
		Params: []string{"inputs"},
		Fn:     fanOut(op, n, mode, cfg),
	}))
	if err := multi.SetChild("op", op); err != nil {
		return nil, err
	}
	return multi, nil
}

func fanOut(op *Operator, n int, mode ExecMode, cfg multiConfig) ForwardFunc {
	return func(ctx context.Context, in Values) (Values, error) {
		replicas, err := replicaInputs(in["inputs"], n)
		if err != nil {
			return nil, err
		}
		results := make([]Values, n)
		run := func(ctx context.Context, i int) error {
			out, err := op.Call(ctx, nil, replicas[i])
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		}
		if mode == ModeRemote {
			run = func(ctx context.Context, i int) error {
				out, err := cfg.handle.Submit(ctx, replicas[i])
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			}
		}

		switch mode {
		case ModeProcess:
			err = joinPool(ctx, n, cfg.poolSize, run)
		default:
			err = joinThreads(ctx, n, run)
		}
		if err != nil {
			return nil, err
		}
		return Values{"results": results}, nil
	}
}

// joinThreads runs one goroutine per replica and joins them. The first
// failure cancels the rest and is returned; partial results are dropped by
// the caller.
func joinThreads(ctx context.Context, n int, run func(context.Context, int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			if err := run(ctx, i); err != nil {
				errs[i] = err
				cancel()
			}
		}(i)
	}
	wg.Wait()
	return firstError(errs)
}

// joinPool runs the replicas on a bounded ants pool and joins them.
func joinPool(ctx context.Context, n, size int, run func(context.Context, int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(size)
	if err != nil {
		return fmt.Errorf("multi: create worker pool: %w", err)
	}
	defer pool.Release()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			if err := run(ctx, i); err != nil {
				errs[i] = err
				cancel()
			}
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = fmt.Errorf("multi: submit replica %d: %w", i, submitErr)
			cancel()
		}
	}
	wg.Wait()
	return firstError(errs)
}

// firstError returns the lowest-index error so joins fail deterministically.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// replicaInputs normalizes the fan-out input into one Values per replica.
func replicaInputs(v any, n int) ([]Values, error) {
	out := make([]Values, n)
	switch in := v.(type) {
	case nil:
		for i := range out {
			out[i] = Values{}
		}
	case []Values:
		if len(in) != n {
			return nil, fmt.Errorf("multi: got %d per-replica inputs for %d replicas", len(in), n)
		}
		copy(out, in)
	case Values:
		for i := range out {
			out[i] = in.Clone()
		}
	case map[string]any:
		for i := range out {
			out[i] = Values(in).Clone()
		}
	default:
		return nil, fmt.Errorf("multi: unsupported inputs type %T", v)
	}
	return out, nil
}
