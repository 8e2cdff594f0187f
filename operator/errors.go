//
// Tencent is pleased to support the open source community by making trpc-opflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-opflow-go is licensed under the Apache License Version 2.0.
//
//

package operator

import "errors"

var (
	// ErrNotInitialized is returned when a child is attached to an operator
	// whose registry was not set up through New.
	ErrNotInitialized = errors.New("operator: registry not initialized, construct the operator with New")
	// ErrNameConflict is returned when a child name is empty, reserved, or
	// otherwise unusable as a registration key.
	ErrNameConflict = errors.New("operator: invalid or conflicting child name")
	// ErrCycle is returned when an attachment or traversal would make an
	// operator its own descendant.
	ErrCycle = errors.New("operator: cycle detected")
	// ErrArity is returned when the supplied argument count does not match
	// the declared parameter count and type checking is enabled.
	ErrArity = errors.New("operator: argument count mismatch")
	// ErrUnknownParam is returned when a named argument does not match any
	// declared parameter.
	ErrUnknownParam = errors.New("operator: unknown parameter")
	// ErrDuplicateParam is returned when a parameter is bound both
	// positionally and by name.
	ErrDuplicateParam = errors.New("operator: parameter bound twice")
	// ErrNoForward is returned when an operator without a bound forward is
	// invoked.
	ErrNoForward = errors.New("operator: no forward implemented")
	// ErrVersionMismatch is returned when a state dict carries an
	// incompatible schema version.
	ErrVersionMismatch = errors.New("operator: state dict version mismatch")
)
