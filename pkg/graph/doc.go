// Package graph provides a generic, compile-then-run execution graph.
//
// A Graph is built by registering named nodes and the edges between them,
// then compiled into an immutable CompiledGraph that can be shared across
// goroutines and executed once per request. Conditional edges select the
// next node from runtime state, which is how the conversation pipeline
// expresses its routing policy.
//
// Execution is strictly sequential: one node at a time, following the edge
// decisions, until the END sentinel is reached. The engine handles panic
// recovery, cancellation, iteration limits, per-node observability, and
// optional checkpointing.
package graph
