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
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-opflow-go/log"
	"trpc.group/trpc-go/trpc-opflow-go/operator"
)

// RootName is the name of the synthetic root operator produced by FromDAG
// and the task-id prefix for parentless tasks.
const RootName = "root"

// edgeName builds the registration name for a parent/child edge. Encoding
// both endpoints keeps names collision-free when a parent has several edges.
func edgeName(parent, child string) string {
	return fmt.Sprintf("op__%s__%s", parent, child)
}

// ToTask exports a single operator as a scheduler task. The one
// caller-supplied timeout feeds both the execution timeout and the SLA; a
// zero timeout leaves both unset. Communication metadata is merged
// best-effort, then overrides win. The scheduler's built-in notification
// hooks stay disabled; the bridge owns those channels.
func ToTask(op *operator.Operator, timeout time.Duration, overrides map[string]any) *Task {
	task := &Task{
		TaskID:   op.Name(),
		Kind:     KindPythonCallable,
		Callable: op.Forward(),
		DocRST:   composeDoc(op),
	}
	if timeout > 0 {
		d := timeout
		task.ExecutionTimeout = &d
		task.SLA = &d
	}

	comms, err := op.Comms()
	if err != nil {
		log.Debugf("comms metadata for operator %s unavailable: %v", op.Name(), err)
		comms = map[string]any{}
	}
	extra := make(map[string]any, len(comms)+len(overrides))
	for k, v := range comms {
		extra[k] = v
	}
	for k, v := range overrides {
		extra[k] = v
	}
	task.Extra = extra
	return task
}

// composeDoc concatenates the operator's descriptive text and its forward's
// descriptive text. When both are empty the field is omitted entirely.
func composeDoc(op *operator.Operator) string {
	opDoc := op.Doc()
	var fwdDoc string
	if f := op.Forward(); f != nil {
		fwdDoc = f.Doc
	}
	if opDoc == "" && fwdDoc == "" {
		return ""
	}
	return opDoc + "\n" + fwdDoc
}

// ToDAG exports every operator in the tree rooted at op as one task each,
// wiring upstream edges from the parent/child structure, and wraps them in a
// DAG record whose id is "DAG_" plus the root task id. dagParams is passed
// through unmodified.
func ToDAG(op *operator.Operator, timeout time.Duration,
	overrides map[string]any, dagParams map[string]any) (*DAG, error) {
	if !op.IsDAG() {
		return nil, fmt.Errorf("export %q: %w", op.Name(), operator.ErrCycle)
	}

	taskOf := make(map[*operator.Operator]*Task)
	var tasks []*Task
	var rootID string
	for path, node := range op.NamedOperators(true) {
		task := ToTask(node, timeout, overrides)
		// The dotted path keeps ids unique when node names repeat.
		if path != "" {
			task.TaskID = strings.ReplaceAll(path, ".", "__")
		}
		if path == "" {
			rootID = task.TaskID
		}
		taskOf[node] = task
		tasks = append(tasks, task)
	}

	// A child runs after its parent completes.
	for node := range op.Operators() {
		parentTask := taskOf[node]
		for _, nc := range node.Children() {
			taskOf[nc.Operator].SetUpstream(parentTask)
		}
	}

	return &DAG{
		DAGID:  "DAG_" + rootID,
		Params: dagParams,
		Tasks:  tasks,
	}, nil
}

// FromTask imports a single task as a fresh operator bound to the task's
// callable. Only python-callable leaf tasks are supported.
func FromTask(task *Task) (*operator.Operator, error) {
	if task.Kind != KindPythonCallable {
		return nil, fmt.Errorf("task %q kind %q: %w", task.TaskID, task.Kind, ErrUnsupportedTaskKind)
	}
	op := operator.New(task.TaskID)
	if task.Callable != nil {
		op.BindForward(task.Callable)
	}
	return op, nil
}

// FromDAG reconstructs an operator tree from a flat task group. Every task
// must be a python-callable leaf task. One fresh operator is materialized
// per task id; forwards bind best-effort, so a task without a distinct
// callable imports fine and only fails if that specific operator is later
// invoked. A child is attached to each of its parents under a name encoding
// both endpoints, parentless tasks hang off a synthetic root, and the root's
// forward is a Pipeline preserving the task group's partial order.
//
// Invoke the root with type checking disabled; the composed forward's input
// contract is whatever the first tasks accept.
func FromDAG(tasks []*Task) (*operator.Operator, error) {
	byID := make(map[string]*Task, len(tasks))
	var order []string
	for _, t := range tasks {
		if t.Kind != KindPythonCallable {
			return nil, fmt.Errorf("task %q kind %q: %w", t.TaskID, t.Kind, ErrUnsupportedTaskKind)
		}
		if _, dup := byID[t.TaskID]; dup {
			return nil, fmt.Errorf("import: duplicate task id %q", t.TaskID)
		}
		byID[t.TaskID] = t
		order = append(order, t.TaskID)
	}

	deps := make(map[string][]string, len(order))
	for _, id := range order {
		for _, up := range byID[id].DirectRelatives(true) {
			deps[id] = append(deps[id], up.TaskID)
		}
	}

	ops := make(map[string]*operator.Operator)
	materialize := func(id string) *operator.Operator {
		if op, ok := ops[id]; ok {
			return op
		}
		op := operator.New(id)
		// Best-effort: a pass-through task is tolerated and left without
		// a bound forward.
		if t, ok := byID[id]; ok && t.Callable != nil {
			op.BindForward(t.Callable)
		} else {
			log.Debugf("task %s has no callable, importing without a forward", id)
		}
		ops[id] = op
		return op
	}

	root := operator.New(RootName)
	var parentless []string
	for _, child := range order {
		childOp := materialize(child)
		parents := deps[child]
		for _, p := range parents {
			if err := materialize(p).SetChild(edgeName(p, child), childOp); err != nil {
				return nil, fmt.Errorf("import task %q: %w", child, err)
			}
		}
		if len(parents) == 0 {
			parentless = append(parentless, child)
		}
	}
	for _, id := range parentless {
		if err := root.SetChild(edgeName(RootName, id), ops[id]); err != nil {
			return nil, fmt.Errorf("import task %q: %w", id, err)
		}
	}

	pipeline, err := NewPipeline(order, deps, ops)
	if err != nil {
		return nil, err
	}
	root.BindForward(&operator.Forward{
		Fn:  pipeline.Run,
		Doc: "composed forward over the imported task group",
	})
	return root, nil
}
