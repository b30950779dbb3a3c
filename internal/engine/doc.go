// Package engine runs the full pairing pipeline.
//
// params.go converts configuration into Params and checks its preconditions;
// malformed parameters are the only thing that stops a run.
//
// engine.go provides the pure Plan(Input, Params) function:
// outlier exclusion per batch, A/B ratio matching, then pairing/sensor
// assignment. Plan has no clock, no randomness and no I/O, so identical
// inputs produce identical results.
//
// runner.go provides Runner, which reads a snapshot from a Repository, calls
// Plan, logs one line per event, and optionally commits the assignments back.
package engine
