// Package services contains domain services of the fulfillment workflow.
//
// DecideTransition is the pure core of the orchestrator: given the stage an
// order rests in and the outcome an actor reported, it returns what must
// happen next. It performs no I/O, so every branch of the stage graph can be
// tested without storage or queues.
package services
