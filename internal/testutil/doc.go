// Package testutil contains helpers used across tests to reduce boilerplate
// when scripting generators, faking web tools and constructing run state.
// They are not intended for production usage.
package testutil
