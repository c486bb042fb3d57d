// Package model defines the provider agnostic abstractions and helpers for
// interacting with language models inside metaexpert.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Support free text and structured JSON responses
//   - Bound every call with a timeout and classify failures into the core error taxonomy
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI and compatible servers, Anthropic, Gemini) implement the
// Model interface so experts and the router remain decoupled from vendor SDKs.
package model
