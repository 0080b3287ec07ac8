// Package core provides the foundational types shared by every package in the
// SDK: the common Error taxonomy (configuration, validation, agent, workflow,
// plugin, model failures) and unique identifier generation.
//
// Errors carry a message plus an optional structured context map so callers
// can handle diagnostics programmatically; all categories share the single
// *core.Error type, enabling "catch any SDK error" handling via errors.As.
package core
