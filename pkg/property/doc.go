/*
Package property declares the typed configuration fields a node type exposes and
validates raw values against them.

A Declaration only describes the shape of a field. Actual values live on the
processor instance, usually inside a Store that the processor seeds with its own
defaults. Change notifications for editing surfaces go through a Bus; the engine
itself never depends on them.
*/
package property
