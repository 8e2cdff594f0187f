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

// Package operator provides a hierarchical computation-graph abstraction:
// named callable units composed into trees, validated for acyclicity and
// executed with argument-contract checking.
package operator

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Version is the schema tag carried by operators and their state dicts for
// forward/backward compatible (de)serialization.
const Version = 1

// DefaultName is used when an operator is constructed without a name.
const DefaultName = "Operator"

// Values is the argument/result mapping passed through forward functions.
type Values map[string]any

// Clone creates a shallow copy of the values.
func (v Values) Clone() Values {
	clone := make(Values, len(v))
	for k, val := range v {
		clone[k] = val
	}
	return clone
}

// ForwardFunc is the user-supplied computation an operator executes.
type ForwardFunc func(ctx context.Context, in Values) (Values, error)

// Forward couples a forward function with its declared input contract. The
// parameter names are declared explicitly rather than recovered through
// reflection, so the call contract is checkable without inspecting the
// function value.
type Forward struct {
	// Params are the declared input parameter names, in binding order.
	Params []string
	// Fn is the computation. A nil Fn means no forward is implemented.
	Fn ForwardFunc
	// Doc is descriptive text for the forward, carried into exported task
	// documentation.
	Doc string
}

// CommsFunc supplies communication metadata merged into exported tasks.
// Failures degrade to an empty mapping rather than aborting an export.
type CommsFunc func() (map[string]any, error)

// Operator is a named, composable unit of computation. It owns an ordered
// registry of named child operators and an optional bound Forward.
//
// Children are registered in insertion order and the same operator instance
// may be registered under several names; traversal de-duplicates by
// identity. Attachments that would make an operator its own descendant are
// rejected at mutation time.
type Operator struct {
	name    string
	doc     string
	version int
	forward *Forward
	comms   CommsFunc

	mu         sync.RWMutex
	childNames []string
	childMap   map[string]*Operator
	// dagDirty marks that the cached acyclicity result must be recomputed
	// before the next invocation.
	dagDirty bool

	state *StateDict
}

// Option configures an Operator at construction.
type Option func(*Operator)

// WithForward binds the operator's forward.
func WithForward(f *Forward) Option {
	return func(o *Operator) {
		o.forward = f
	}
}

// WithDoc sets the operator's descriptive text.
func WithDoc(doc string) Option {
	return func(o *Operator) {
		o.doc = doc
	}
}

// WithComms sets the communication metadata supplier.
func WithComms(fn CommsFunc) Option {
	return func(o *Operator) {
		o.comms = fn
	}
}

// New creates an operator. An empty name defaults to DefaultName. The state
// descriptor is constructed per instance.
func New(name string, opts ...Option) *Operator {
	if name == "" {
		name = DefaultName
	}
	op := &Operator{
		name:     name,
		version:  Version,
		childMap: make(map[string]*Operator),
		state:    NewStateDict(),
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// Name returns the display identifier. Names are not guaranteed globally
// unique.
func (o *Operator) Name() string {
	return o.name
}

// Doc returns the operator's descriptive text.
func (o *Operator) Doc() string {
	return o.doc
}

// Forward returns the bound forward, or nil when none is bound.
func (o *Operator) Forward() *Forward {
	return o.forward
}

// BindForward binds or replaces the operator's forward after construction.
func (o *Operator) BindForward(f *Forward) {
	o.forward = f
}

// Comms returns the communication metadata for this operator. Without a
// supplier it returns an empty mapping.
func (o *Operator) Comms() (map[string]any, error) {
	if o.comms == nil {
		return map[string]any{}, nil
	}
	return o.comms()
}

// initialized reports whether the registry was set up through New.
func (o *Operator) initialized() bool {
	return o.childMap != nil
}

// SetChild registers child under name. Re-assigning an existing name
// overwrites the previous child. It fails with ErrNotInitialized on a
// zero-value owner, ErrNameConflict on an unusable name, and ErrCycle when
// the attachment would make the owner reachable from the child.
func (o *Operator) SetChild(name string, child *Operator) error {
	if o == nil || !o.initialized() {
		return ErrNotInitialized
	}
	if child == nil {
		return fmt.Errorf("attach %q: child must not be nil", name)
	}
	if name == "" || strings.Contains(name, ".") {
		return fmt.Errorf("attach %q: %w", name, ErrNameConflict)
	}
	// Reject the attachment instead of detecting the cycle at call time.
	if child == o || reachable(child, o) {
		return fmt.Errorf("attach %q to %q: %w", name, o.name, ErrCycle)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.childMap[name]; !exists {
		o.childNames = append(o.childNames, name)
	}
	o.childMap[name] = child
	o.dagDirty = true
	return nil
}

// DetachChild removes the child registered under name and reports whether
// anything was removed.
func (o *Operator) DetachChild(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.childMap[name]; !ok {
		return false
	}
	delete(o.childMap, name)
	for i, n := range o.childNames {
		if n == name {
			o.childNames = append(o.childNames[:i], o.childNames[i+1:]...)
			break
		}
	}
	o.dagDirty = true
	return true
}

// Child returns the child registered under name.
func (o *Operator) Child(name string) (*Operator, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	child, ok := o.childMap[name]
	return child, ok
}

// NamedChild pairs a registration name with the registered operator.
type NamedChild struct {
	Name     string
	Operator *Operator
}

// Children returns the registered children in insertion order. The slice is
// a read view; mutating it does not affect the registry.
func (o *Operator) Children() []NamedChild {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]NamedChild, 0, len(o.childNames))
	for _, name := range o.childNames {
		out = append(out, NamedChild{Name: name, Operator: o.childMap[name]})
	}
	return out
}

// reachable reports whether target can be reached from the subtree rooted at
// from, following child edges.
func reachable(from, target *Operator) bool {
	if from == target {
		return true
	}
	seen := map[*Operator]struct{}{from: {}}
	stack := []*Operator{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nc := range cur.Children() {
			child := nc.Operator
			if child == target {
				return true
			}
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			stack = append(stack, child)
		}
	}
	return false
}

// String renders the operator tree as a nested, indented description.
func (o *Operator) String() string {
	var childLines []string
	for _, nc := range o.Children() {
		childLines = append(childLines,
			fmt.Sprintf("(%s): %s", nc.Name, addIndent(nc.Operator.String(), 2)))
	}
	if len(childLines) == 0 {
		return o.name + "()"
	}
	return o.name + "(\n  " + strings.Join(childLines, "\n  ") + "\n)"
}

// addIndent indents every line after the first by n spaces.
func addIndent(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		return s
	}
	pad := strings.Repeat(" ", n)
	for i := 1; i < len(lines); i++ {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}
