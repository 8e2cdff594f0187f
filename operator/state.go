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
	"encoding/json"
	"fmt"
)

// Phase is the lifecycle tag of an operator's state.
type Phase string

// Lifecycle phases.
const (
	PhaseStopped   Phase = "stopped"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// StateDict is the serializable descriptor of an operator's persisted state.
// Data, Inputs and Outputs are always materialized as order-preserving
// mappings, even when constructed from plain maps.
type StateDict struct {
	Version int         `json:"version"`
	Phase   Phase       `json:"phase"`
	Data    *OrderedMap `json:"data"`
	Inputs  *OrderedMap `json:"inputs"`
	Outputs *OrderedMap `json:"outputs"`
}

// NewStateDict creates an empty descriptor in the stopped phase. Each
// operator owns its own instance; descriptors are never shared defaults.
func NewStateDict() *StateDict {
	return &StateDict{
		Version: Version,
		Phase:   PhaseStopped,
		Data:    NewOrderedMap(),
		Inputs:  NewOrderedMap(),
		Outputs: NewOrderedMap(),
	}
}

// StateDictFrom materializes a descriptor from plain maps.
func StateDictFrom(phase Phase, data, inputs, outputs map[string]any) *StateDict {
	return &StateDict{
		Version: Version,
		Phase:   phase,
		Data:    OrderedMapFrom(data),
		Inputs:  OrderedMapFrom(inputs),
		Outputs: OrderedMapFrom(outputs),
	}
}

// Clone returns a shallow copy of the descriptor.
func (s *StateDict) Clone() *StateDict {
	return &StateDict{
		Version: s.Version,
		Phase:   s.Phase,
		Data:    s.Data.Clone(),
		Inputs:  s.Inputs.Clone(),
		Outputs: s.Outputs.Clone(),
	}
}

// Serialize encodes the descriptor as JSON.
func (s *StateDict) Serialize() ([]byte, error) {
	return json.Marshal(s)
}

// DeserializeStateDict decodes a descriptor and validates its schema
// version.
func DeserializeStateDict(data []byte) (*StateDict, error) {
	sd := NewStateDict()
	if err := json.Unmarshal(data, sd); err != nil {
		return nil, fmt.Errorf("deserialize state dict: %w", err)
	}
	if sd.Version != Version {
		return nil, fmt.Errorf("state dict version %d, want %d: %w",
			sd.Version, Version, ErrVersionMismatch)
	}
	return sd, nil
}

// StateDict snapshots the operator's descriptor. Inputs reflect the declared
// parameters of the bound forward.
func (o *Operator) StateDict() *StateDict {
	sd := o.state.Clone()
	sd.Inputs = NewOrderedMap()
	for _, p := range o.Inputs() {
		sd.Inputs.Set(p, nil)
	}
	return sd
}

// LoadStateDict restores the operator's descriptor from a snapshot. A
// descriptor with a different schema version is rejected.
func (o *Operator) LoadStateDict(sd *StateDict) error {
	if sd == nil {
		return fmt.Errorf("load state dict: descriptor must not be nil")
	}
	if sd.Version != o.version {
		return fmt.Errorf("state dict version %d, want %d: %w",
			sd.Version, o.version, ErrVersionMismatch)
	}
	o.state = sd.Clone()
	return nil
}

// Phase returns the operator's current lifecycle phase.
func (o *Operator) Phase() Phase {
	return o.state.Phase
}

// SetPhase updates the operator's lifecycle phase.
func (o *Operator) SetPhase(p Phase) {
	o.state.Phase = p
}
