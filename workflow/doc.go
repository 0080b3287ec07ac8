// Package workflow models declarative workflows: uniquely named steps bound
// to agents, with explicit depends_on edges plus dependency inference from
// input/output key overlap. Layers() flattens the resulting DAG into
// topological layers for the engine's sequential and parallel schedulers,
// failing fast on cycles.
package workflow
