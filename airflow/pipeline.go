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

package airflow

import (
	"context"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-opflow-go/operator"
	itrace "trpc.group/trpc-go/trpc-opflow-go/telemetry/trace"
)

const spanNameRunPipeline = "run_pipeline"

// Pipeline is the composed forward of an imported task group. It keeps the
// group's dependency table explicit and executes it by topological waves:
// tasks of a wave run concurrently, a task's inputs are the merged outputs
// of its direct upstreams (the initial keyword arguments for parentless
// tasks), and the run's result is the merged outputs of the terminal tasks.
// An empty or nil task output degrades to an empty mapping so heterogeneous
// pipelines do not crash on propagation.
//
// Wave membership, merge order and error selection all follow the task
// group's declaration order, so two pipelines built from the same input
// behave identically.
type Pipeline struct {
	order     []string
	deps      map[string][]string
	ops       map[string]*operator.Operator
	waves     [][]string
	terminals []string
}

// NewPipeline builds a pipeline from a dependency table. order lists the
// task ids in declaration order, deps maps a task id to its upstream ids,
// and ops supplies the operator for every id encountered. A cyclic table is
// rejected with operator.ErrCycle.
func NewPipeline(order []string, deps map[string][]string,
	ops map[string]*operator.Operator) (*Pipeline, error) {
	universe := universeOf(order, deps)
	for _, id := range universe {
		if ops[id] == nil {
			return nil, fmt.Errorf("pipeline: no operator for task %q", id)
		}
	}

	waves, err := topoWaves(universe, deps)
	if err != nil {
		return nil, err
	}

	// Terminal tasks are the ones nothing depends on.
	isUpstream := make(map[string]bool)
	for _, parents := range deps {
		for _, p := range parents {
			isUpstream[p] = true
		}
	}
	var terminals []string
	for _, id := range universe {
		if !isUpstream[id] {
			terminals = append(terminals, id)
		}
	}

	return &Pipeline{
		order:     universe,
		deps:      deps,
		ops:       ops,
		waves:     waves,
		terminals: terminals,
	}, nil
}

// universeOf returns every task id in declaration order, appending upstream
// ids that only appear inside the dependency table.
func universeOf(order []string, deps map[string][]string) []string {
	seen := make(map[string]bool, len(order))
	universe := make([]string, 0, len(order))
	for _, id := range order {
		if !seen[id] {
			seen[id] = true
			universe = append(universe, id)
		}
	}
	for _, id := range order {
		for _, p := range deps[id] {
			if !seen[p] {
				seen[p] = true
				universe = append(universe, p)
			}
		}
	}
	return universe
}

// topoWaves levels the dependency table: wave zero holds the parentless
// tasks, each later wave holds the tasks whose upstreams all sit in earlier
// waves. Leftover tasks mean a cycle.
func topoWaves(universe []string, deps map[string][]string) ([][]string, error) {
	indegree := make(map[string]int, len(universe))
	for _, id := range universe {
		indegree[id] = len(deps[id])
	}
	downstream := make(map[string][]string)
	for _, id := range universe {
		for _, p := range deps[id] {
			downstream[p] = append(downstream[p], id)
		}
	}

	var waves [][]string
	remaining := universe
	for len(remaining) > 0 {
		var wave, rest []string
		for _, id := range remaining {
			if indegree[id] == 0 {
				wave = append(wave, id)
			} else {
				rest = append(rest, id)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("pipeline: dependency table: %w", operator.ErrCycle)
		}
		for _, id := range wave {
			for _, d := range downstream[id] {
				indegree[d]--
			}
		}
		waves = append(waves, wave)
		remaining = rest
	}
	return waves, nil
}

// Run executes the pipeline with the given initial keyword arguments and
// returns the merged outputs of the terminal tasks. An empty pipeline
// returns the arguments unchanged.
func (p *Pipeline) Run(ctx context.Context, kwargs operator.Values) (operator.Values, error) {
	if len(p.order) == 0 {
		return kwargs, nil
	}
	ctx, span := itrace.Tracer.Start(ctx, spanNameRunPipeline)
	defer span.End()

	outputs := make(map[string]operator.Values, len(p.order))
	for _, wave := range p.waves {
		if err := p.runWave(ctx, wave, kwargs, outputs); err != nil {
			return nil, err
		}
	}
	return p.mergeOf(p.terminals, kwargs, outputs), nil
}

// runWave executes one wave's tasks concurrently and joins them. The first
// failure in wave order wins so runs fail deterministically.
func (p *Pipeline) runWave(ctx context.Context, wave []string,
	kwargs operator.Values, outputs map[string]operator.Values) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]operator.Values, len(wave))
	errs := make([]error, len(wave))
	var wg sync.WaitGroup
	for i, id := range wave {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			inputs := p.mergeOf(p.deps[id], kwargs, outputs)
			out, err := p.ops[id].Call(ctx, nil, inputs)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = out
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("pipeline task %q: %w", wave[i], err)
		}
	}
	for i, id := range wave {
		out := results[i]
		if len(out) == 0 {
			out = operator.Values{}
		}
		outputs[id] = out
	}
	return nil
}

// mergeOf joins the outputs of the given task ids in order. Without ids the
// initial keyword arguments flow through instead.
func (p *Pipeline) mergeOf(ids []string, kwargs operator.Values,
	outputs map[string]operator.Values) operator.Values {
	if len(ids) == 0 {
		if kwargs == nil {
			return operator.Values{}
		}
		return kwargs.Clone()
	}
	merged := operator.Values{}
	for _, id := range ids {
		for k, v := range outputs[id] {
			merged[k] = v
		}
	}
	return merged
}
