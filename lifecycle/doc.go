// Package lifecycle provides phase tracking for managed components. A Manager
// owns exactly one current Phase, validates every transition against a fixed
// adjacency table, and invokes registered callbacks in order each time a
// phase is entered.
//
// The phase graph is forward-oriented: initialized → started → running, with
// paused as a running-side detour, stopped as the wind-down phase, shutdown
// as the single terminal phase, and error reachable from every live phase.
package lifecycle
