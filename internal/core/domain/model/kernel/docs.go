// Package kernel provides the domain primitives shared across aggregates of the
// fulfillment workflow.
//
// The package includes:
//   - Token: the opaque continuation token minted when a stage suspends
//   - NewExecutionID: identifiers for started workflow executions
//
// Primitives are immutable value objects and safe for concurrent use.
package kernel
