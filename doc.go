/*
Package cvflow is a node-graph execution engine for visual data-transform pipelines.

Users wire typed nodes together; each node transforms the buffers it receives on its
target ports into buffers emitted on its source ports. cvflow owns the graph, the
plugin registry that makes node types pluggable, and the scheduler that propagates
buffers through the graph in dependency order, one cycle at a time.

# Concept

A node type declares ordered ports, typed properties and a processor factory. Each
node placed in the graph gets its own stateful processor. On every cycle the engine
visits nodes in topological order, assembles each node's inputs from the outputs
its upstream nodes produced in the same cycle, and publishes the whole cycle's
outputs atomically when it ends. A failing node produces nothing for that cycle;
the rest of the graph carries on.

# Key Features

  - Arity modes: fixed, endless (fold over any number of connections) and output-only.
  - Edit safety: edits are serialized and observed from the next cycle on.
  - Failure containment: errors and panics are recorded per node, per cycle.
  - Pluggable: node types arrive as plugin load results from any ports.PluginLoader.

# Usage

	eng, err := cvflow.New(ctx, cvflow.WithPluginLoader(builtin.New()))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	one, _ := eng.AddNode(domain.NodeSpec{Type: "Constant", Properties: map[string]any{"value": 1.0}})
	sum, _ := eng.AddNode(domain.NodeSpec{Type: "Sum"})
	_ = eng.Connect(domain.Connection{Source: one, Target: sum})

	if err := eng.Step(ctx); err != nil {
		log.Fatal(err)
	}
	out, _ := eng.Outputs(sum)
*/
package cvflow
