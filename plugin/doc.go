// Package plugin provides a registry for optional host extensions.
//
// Plugins implement a small lifecycle (Init against the shared configuration,
// Close on teardown) and are registered by name. The registry treats plugin
// code as untrusted: panics raised during Init or Close are recovered and
// surfaced as plugin errors, and one failing plugin never blocks the rest.
package plugin
