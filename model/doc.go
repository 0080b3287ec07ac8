// Package model defines the provider-agnostic abstractions for interacting
// with language models from workflow step executors.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Hide vendor SDKs behind a single Generate interface
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (engine, agents) remain decoupled from vendor SDKs.
package model
