package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNodeNotFound is returned when a node id is not part of the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPortNotFound is returned when a connection names a port index the node type does not declare.
	ErrPortNotFound = errors.New("port not found")

	// ErrPortOccupied is returned when a fixed target port already has a connection.
	ErrPortOccupied = errors.New("target port already connected")

	// ErrDuplicateConnection is returned when the exact same connection already exists.
	ErrDuplicateConnection = errors.New("connection already exists")

	// ErrConnectionNotFound is returned when disconnecting an edge that does not exist.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrCyclicGraph is matched by every *CyclicGraphError.
	ErrCyclicGraph = errors.New("connection would create a cycle")

	// ErrUnknownNodeType is returned when a node references a type missing from the registry.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrDuplicateNode is returned when adding a node whose id is already in use.
	ErrDuplicateNode = errors.New("node id already in use")

	// ErrNotConfigurable is returned when setting a property on a processor without properties.
	ErrNotConfigurable = errors.New("processor has no properties")

	// ErrPipelineNotFound is returned when a pipeline document cannot be found in a store.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrNotIdle is returned by operations that require the controller to be idle.
	ErrNotIdle = errors.New("controller is not idle")

	// ErrInvalidNodeType is matched by descriptor validation failures.
	ErrInvalidNodeType = errors.New("invalid node type")

	// ErrInvalidPlugin is returned for load results that carry both or neither of error and plugin.
	ErrInvalidPlugin = errors.New("invalid plugin load result")

	// ErrActionNotFound is returned when triggering a menu action that is not registered.
	ErrActionNotFound = errors.New("menu action not found")
)

// CyclicGraphError reports a rejected connection and the cycle it would have closed.
type CyclicGraphError struct {
	Connection Connection
	// Path lists the node ids of the cycle; the first id is repeated at the end.
	Path []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("%s: %s closes %s", ErrCyclicGraph, e.Connection, strings.Join(e.Path, " -> "))
}

func (e *CyclicGraphError) Unwrap() error {
	return ErrCyclicGraph
}

// ProcessorError is a failure contained to one node for one cycle.
type ProcessorError struct {
	NodeID   string
	NodeType string
	Cycle    uint64
	Err      error
	// Panicked is set when the error was recovered from a panic.
	Panicked bool
}

func (e *ProcessorError) Error() string {
	kind := "failed"
	if e.Panicked {
		kind = "panicked"
	}
	return fmt.Sprintf("node %s (%s) %s on cycle %d: %v", e.NodeID, e.NodeType, kind, e.Cycle, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// PluginLoadFailure records a plugin source the loader could not turn into a usable descriptor.
type PluginLoadFailure struct {
	Source string
	Err    error
}

func (e *PluginLoadFailure) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Source, e.Err)
}

func (e *PluginLoadFailure) Unwrap() error {
	return e.Err
}
