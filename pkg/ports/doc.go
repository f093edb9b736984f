/*
Package ports defines the driven and driving ports (interfaces) of the cvflow engine.

These interfaces decouple the engine from persistence backends, plugin sources and
the surfaces (HTTP, MCP, CLI) that drive a pipeline.

# Key Interfaces

  - Pipeline: The control surface of a live graph (edits, properties, run/stop).
  - GraphStore: Persists pipeline documents by name.
  - PluginLoader: Produces plugin load results for the registry.
  - DistributedLocker: Coordinates edits to the same pipeline across replicas.
*/
package ports
