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

// Package airflow translates operator trees to and from an Airflow-shaped
// task DAG: task records with upstream relations and one callable entry
// point per task.
package airflow

import (
	"context"
	"errors"
	"time"

	"trpc.group/trpc-go/trpc-opflow-go/operator"
)

// ErrUnsupportedTaskKind is returned when an import encounters a task kind
// other than the single supported python-callable leaf kind.
var ErrUnsupportedTaskKind = errors.New("airflow: unsupported task kind")

// TaskKind identifies the scheduler-side task type.
type TaskKind string

// Task kinds. Only KindPythonCallable is importable.
const (
	KindPythonCallable TaskKind = "python_callable"
	KindBash           TaskKind = "bash"
	KindSensor         TaskKind = "sensor"
)

// Callback is a scheduler-side lifecycle hook. The bridge always leaves
// these unset; operator-level hooks own that surface.
type Callback func(ctx context.Context, taskID string)

// Task mirrors the subset of the scheduler's task record consumed and
// produced by the bridge.
type Task struct {
	// TaskID is unique within a DAG.
	TaskID string
	// Kind is the scheduler-side task type.
	Kind TaskKind
	// Callable is the task's single callable entry point. May be nil for
	// pass-through tasks.
	Callable *operator.Forward

	// ExecutionTimeout is the maximum execution time; nil means unbounded.
	ExecutionTimeout *time.Duration
	// SLA is the alerting deadline; nil means no SLA.
	SLA *time.Duration
	// DocRST is reStructuredText documentation; empty means absent.
	DocRST string
	// Extra holds communication metadata and caller overrides.
	Extra map[string]any

	// Notification surface, fixed disabled by the bridge.
	Email             string
	EmailOnRetry      bool
	EmailOnFailure    bool
	Doc               string
	DocMD             string
	DocJSON           string
	DocYAML           string
	OnExecuteCallback Callback
	OnFailureCallback Callback
	OnSuccessCallback Callback
	OnRetryCallback   Callback

	upstream   []*Task
	downstream []*Task
}

// SetUpstream declares that the given tasks must complete before t. The
// reverse downstream relation is recorded as well. Duplicate declarations
// are ignored.
func (t *Task) SetUpstream(parents ...*Task) {
	for _, p := range parents {
		if p == nil || containsTask(t.upstream, p) {
			continue
		}
		t.upstream = append(t.upstream, p)
		p.downstream = append(p.downstream, t)
	}
}

// DirectRelatives returns the direct upstream tasks when upstream is true,
// otherwise the direct downstream tasks.
func (t *Task) DirectRelatives(upstream bool) []*Task {
	src := t.downstream
	if upstream {
		src = t.upstream
	}
	out := make([]*Task, len(src))
	copy(out, src)
	return out
}

func containsTask(tasks []*Task, target *Task) bool {
	for _, t := range tasks {
		if t == target {
			return true
		}
	}
	return false
}

// DAG is the scheduler-side DAG record.
type DAG struct {
	// DAGID is "DAG_" plus the root task id.
	DAGID string
	// Params is caller-supplied configuration, passed through unmodified.
	Params map[string]any
	// Tasks lists the DAG's tasks in traversal order.
	Tasks []*Task
}

// TaskDict indexes the DAG's tasks by id.
func (d *DAG) TaskDict() map[string]*Task {
	out := make(map[string]*Task, len(d.Tasks))
	for _, t := range d.Tasks {
		out[t.TaskID] = t
	}
	return out
}
