//
// Tencent is pleased to support the open source community by making trpc-opflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-opflow-go is licensed under the Apache License Version 2.0.
//
//

package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopForward(params ...string) *Forward {
	return &Forward{
		Params: params,
		Fn: func(ctx context.Context, in Values) (Values, error) {
			return in, nil
		},
	}
}

func TestNewDefaults(t *testing.T) {
	op := New("")
	assert.Equal(t, DefaultName, op.Name())
	assert.Equal(t, PhaseStopped, op.Phase())
	assert.Empty(t, op.Children())
	assert.Nil(t, op.Forward())
}

func TestNewStateIsPerInstance(t *testing.T) {
	a := New("a")
	b := New("b")
	a.SetPhase(PhaseRunning)
	assert.Equal(t, PhaseRunning, a.Phase())
	assert.Equal(t, PhaseStopped, b.Phase(), "state descriptors must not be shared across instances")
}

func TestSetChildNotInitialized(t *testing.T) {
	var owner Operator // zero value, not constructed through New
	err := owner.SetChild("x", New("x"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSetChildNameValidation(t *testing.T) {
	owner := New("owner")
	child := New("child")

	assert.ErrorIs(t, owner.SetChild("", child), ErrNameConflict)
	assert.ErrorIs(t, owner.SetChild("a.b", child), ErrNameConflict)
	assert.Error(t, owner.SetChild("x", nil))
	assert.Empty(t, owner.Children(), "owner state must be unchanged after rejected attachments")
}

func TestSetChildOverwrite(t *testing.T) {
	owner := New("owner")
	first := New("first")
	second := New("second")

	require.NoError(t, owner.SetChild("slot", first))
	require.NoError(t, owner.SetChild("slot", second))

	got, ok := owner.Child("slot")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, owner.Children(), 1)
}

func TestSetChildInsertionOrder(t *testing.T) {
	owner := New("owner")
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, owner.SetChild(name, New(name)))
	}
	var names []string
	for _, nc := range owner.Children() {
		names = append(names, nc.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestSetChildRejectsSelf(t *testing.T) {
	op := New("op")
	assert.ErrorIs(t, op.SetChild("me", op), ErrCycle)
}

func TestSetChildRejectsAncestor(t *testing.T) {
	grandparent := New("grandparent")
	parent := New("parent")
	child := New("child")
	require.NoError(t, grandparent.SetChild("p", parent))
	require.NoError(t, parent.SetChild("c", child))

	err := child.SetChild("back", grandparent)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Empty(t, child.Children())
}

func TestSetChildAllowsSharedSubtree(t *testing.T) {
	// A diamond is acyclic: the same subtree attached under two parents.
	shared := New("shared")
	left := New("left")
	right := New("right")
	root := New("root")
	require.NoError(t, left.SetChild("s", shared))
	require.NoError(t, right.SetChild("s", shared))
	require.NoError(t, root.SetChild("l", left))
	require.NoError(t, root.SetChild("r", right))
	assert.True(t, root.IsDAG())
}

func TestDetachChild(t *testing.T) {
	owner := New("owner")
	require.NoError(t, owner.SetChild("x", New("x")))

	assert.True(t, owner.DetachChild("x"))
	assert.False(t, owner.DetachChild("x"))
	assert.Empty(t, owner.Children())
}

func TestString(t *testing.T) {
	leaf := New("Leaf")
	assert.Equal(t, "Leaf()", leaf.String())

	root := New("Root")
	require.NoError(t, root.SetChild("step", leaf))
	assert.Contains(t, root.String(), "(step): Leaf()")
}

func TestComms(t *testing.T) {
	plain := New("plain")
	m, err := plain.Comms()
	require.NoError(t, err)
	assert.Empty(t, m)

	rich := New("rich", WithComms(func() (map[string]any, error) {
		return map[string]any{"channel": "ops"}, nil
	}))
	m, err = rich.Comms()
	require.NoError(t, err)
	assert.Equal(t, "ops", m["channel"])
}
