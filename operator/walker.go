//
// Tencent is pleased to support the open source community by making trpc-opflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-opflow-go is licensed under the Apache License Version 2.0.
//
//

package operator

import "iter"

// NamedOperators iterates the tree rooted at o in depth-first pre-order,
// yielding (dotted path, operator) pairs. The root is yielded with an empty
// path; a child's path is its parent's path plus "." plus the registration
// name. When removeDuplicates is true, an instance already yielded anywhere
// in the traversal is skipped on later encounters, so a subtree attached
// under several names is counted once.
func (o *Operator) NamedOperators(removeDuplicates bool) iter.Seq2[string, *Operator] {
	return func(yield func(string, *Operator) bool) {
		memo := make(map[*Operator]struct{})
		o.walk("", removeDuplicates, memo, yield)
	}
}

// Operators iterates the operators of the tree, duplicates removed.
func (o *Operator) Operators() iter.Seq[*Operator] {
	return func(yield func(*Operator) bool) {
		for _, op := range o.NamedOperators(true) {
			if !yield(op) {
				return
			}
		}
	}
}

func (o *Operator) walk(prefix string, removeDuplicates bool,
	memo map[*Operator]struct{}, yield func(string, *Operator) bool) bool {
	if _, seen := memo[o]; seen {
		return true
	}
	if removeDuplicates {
		memo[o] = struct{}{}
	}
	if !yield(prefix, o) {
		return false
	}
	for _, nc := range o.Children() {
		childPrefix := nc.Name
		if prefix != "" {
			childPrefix = prefix + "." + nc.Name
		}
		if !nc.Operator.walk(childPrefix, removeDuplicates, memo, yield) {
			return false
		}
	}
	return true
}

// Traversal colors for cycle detection.
const (
	colorGray = iota + 1
	colorBlack
)

// IsDAG reports whether the structure rooted at o is acyclic. It runs a
// depth-first search with three-color marking over operator identity: a
// revisit of an in-progress (gray) operator is a true cycle, while a
// revisit of a finished (black) operator is a legitimately shared subtree.
func (o *Operator) IsDAG() bool {
	return visitAcyclic(o, make(map[*Operator]int))
}

func visitAcyclic(o *Operator, colors map[*Operator]int) bool {
	switch colors[o] {
	case colorGray:
		return false
	case colorBlack:
		return true
	}
	colors[o] = colorGray
	for _, nc := range o.Children() {
		if !visitAcyclic(nc.Operator, colors) {
			return false
		}
	}
	colors[o] = colorBlack
	return true
}

// checkDAG re-validates the cached acyclicity result when the structure has
// mutated since the last check. Attachment already rejects cycles, so the
// cache can only flip through direct registry manipulation.
func (o *Operator) checkDAG() bool {
	o.mu.RLock()
	dirty := o.dagDirty
	o.mu.RUnlock()
	if !dirty {
		return true
	}
	if !o.IsDAG() {
		return false
	}
	o.mu.Lock()
	o.dagDirty = false
	o.mu.Unlock()
	return true
}
