// Package reasoner provides deterministic task analysis and routing: a
// complexity heuristic over task text, an execution mode recommendation
// derived from it, keyword-based domain detection backed by a configurable
// DomainRegistry, token-overlap routing of free-text tasks to named
// workflows, and a named-rule DecisionEngine for option selection. Every
// routing, domain and selection decision is appended to an audit history
// scoped to the Reasoner instance.
package reasoner
