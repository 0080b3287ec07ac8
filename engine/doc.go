// Package engine implements the core workflow orchestration layer.
//
// The Engine coordinates three concerns:
//
// Scheduling:
//   - Workflows are resolved into dependency layers before a run starts
//   - Sequential mode executes steps one at a time in topological order
//   - Parallel and hybrid modes run each layer's steps concurrently,
//     bounded by Config.MaxParallelSteps
//
// Run management:
//   - Asynchronous (Execute) and synchronous (ExecuteSync) execution
//   - Bounded concurrent runs with fail-fast admission
//   - Per-run contexts bounded by the workflow timeout
//   - Run records persisted through a pluggable RunStore
//
// Lifecycle gating:
//   - New runs are only admitted while the lifecycle phase is running
//   - Stop and Shutdown cancel in-flight runs; Pause lets them finish
//
// Steps are carried out by an Executor. FuncExecutor dispatches to plain Go
// functions keyed by step name; ModelExecutor prompts a language model
// selected through the step's agent. Failed attempts are retried up to the
// agent's MaxIterations budget.
package engine
