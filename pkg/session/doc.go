/*
Package session coordinates access to stored pipelines.

A Manager serializes reads and writes of a named pipeline document across
goroutines with reference-counted local locks and, optionally, across replicas
with a ports.DistributedLocker. It also binds live pipelines to stored
documents: Open hydrates a pipeline and Commit persists it.
*/
package session
