/*
Package domain contains the core models of the cvflow node-graph engine.

It defines node type descriptors, ports (handles), the processor contract, plugin
descriptors and the serializable graph document. This package holds no I/O and no
scheduling logic; the runtime and the adapters depend on it, never the reverse.

# Key Entities

  - NodeType: Immutable template of a node (ports, property declarations, processor factory).
  - Handle: A target (input) or source (output) port, ordered positionally.
  - Processor: The stateful per-instance transform invoked once per cycle.
  - PluginDescriptor / PluginLoadResult: What an external loader hands to the registry.
  - GraphDocument: Portable description of a pipeline (nodes, properties, connections).
*/
package domain
