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
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trpc.group/trpc-go/trpc-opflow-go/log"
	imetric "trpc.group/trpc-go/trpc-opflow-go/telemetry/metric"
	itrace "trpc.group/trpc-go/trpc-opflow-go/telemetry/trace"
)

// Span and attribute names for operator invocations.
const (
	spanNameInvoke = "invoke_operator"

	keyOperatorName = "opflow.operator.name"
	keyInvocationID = "opflow.invocation.id"
)

type callOptions struct {
	typeCheck bool
}

// CallOption configures a single invocation.
type CallOption func(*callOptions)

// WithTypeCheck toggles arity validation between supplied arguments and
// declared parameters. Enabled by default.
func WithTypeCheck(enabled bool) CallOption {
	return func(o *callOptions) {
		o.typeCheck = enabled
	}
}

// Inputs returns the declared parameter names of the bound forward. It is
// nil when no forward is bound.
func (o *Operator) Inputs() []string {
	if o.forward == nil {
		return nil
	}
	return slices.Clone(o.forward.Params)
}

// Call validates and executes the operator: positional arguments bind to
// declared parameters by position, named arguments by name, and the bound
// mapping is handed to the forward. The forward's result is returned
// unchanged.
//
// The structure must be acyclic; the check is cached and only re-run after a
// structural mutation. With type checking enabled (the default) the total
// argument count must equal the declared parameter count.
func (o *Operator) Call(ctx context.Context, args []any, kwargs Values,
	opts ...CallOption) (Values, error) {
	options := callOptions{typeCheck: true}
	for _, opt := range opts {
		opt(&options)
	}

	if !o.checkDAG() {
		return nil, fmt.Errorf("invoke %q: %w", o.name, ErrCycle)
	}
	if o.forward == nil || o.forward.Fn == nil {
		return nil, fmt.Errorf("invoke %q: %w", o.name, ErrNoForward)
	}

	inputs, err := o.bindInputs(args, kwargs, options.typeCheck)
	if err != nil {
		return nil, err
	}

	invocationID := uuid.New().String()
	ctx, span := itrace.Tracer.Start(ctx, spanNameInvoke+" "+o.name)
	defer span.End()
	span.SetAttributes(
		attribute.String(keyOperatorName, o.name),
		attribute.String(keyInvocationID, invocationID),
	)

	log.Debugf("operator %s invocation %s inputs: %v", o.name, invocationID, inputs)
	imetric.IncInvocationCnt(ctx, o.name)
	start := time.Now()

	out, err := o.forward.Fn(ctx, inputs)
	imetric.RecordInvocationDuration(ctx, o.name, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("invoke %q: %w", o.name, err)
	}
	return out, nil
}

// bindInputs produces the input mapping for one invocation.
func (o *Operator) bindInputs(args []any, kwargs Values, typeCheck bool) (Values, error) {
	params := o.forward.Params
	if typeCheck {
		if total := len(args) + len(kwargs); total != len(params) {
			return nil, fmt.Errorf("invoke %q: got %d arguments for %d declared parameters: %w",
				o.name, total, len(params), ErrArity)
		}
	}

	inputs := make(Values, len(args)+len(kwargs))
	for i, arg := range args {
		if i >= len(params) {
			// Only possible with type checking disabled; surplus
			// positional arguments have no parameter to bind to.
			break
		}
		inputs[params[i]] = arg
	}
	for key, value := range kwargs {
		// Without type checking, named arguments flow through unchanged so
		// composed forwards with an open contract receive the raw mapping.
		if typeCheck && !slices.Contains(params, key) {
			return nil, fmt.Errorf("invoke %q: argument %q: %w", o.name, key, ErrUnknownParam)
		}
		if _, bound := inputs[key]; bound {
			return nil, fmt.Errorf("invoke %q: argument %q: %w", o.name, key, ErrDuplicateParam)
		}
		inputs[key] = value
	}
	return inputs, nil
}
