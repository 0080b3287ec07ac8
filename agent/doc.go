// Package agent defines the Agent descriptor and its registry. An Agent is a
// passive, addressable executor description: a name, a role tag, a model
// reference and a bounded iteration budget. The engine binds descriptors to
// live model clients at run time and drives up to MaxIterations attempts per
// workflow step.
package agent
