// Package core provides the foundational domain types shared by every layer of
// metaexpert. It defines:
//
//   - Message (role tagged text exchanged with models and recorded in state)
//   - State (the conversation record threaded through one orchestrated run)
//   - ToolResult (the staged output of the web lookup pipeline)
//   - Expert (the uniform capability implemented by every graph node)
//   - RunContext (the per-run execution scope handed to experts)
//   - StepLimiter and the error taxonomy used across packages
//
// Concrete experts, generators, tools and the orchestrator live in their own
// packages and only meet here through these small types and interfaces.
package core
