// Package assign binds component pairings to calibrated sensors.
//
// For every (pairing, sensor) combination Match maps the A component's probe
// pressures to sensor signals, sums both components' flows at those pressures
// into a combined curve, and validates the curve against the specification
// envelope. Passing combinations become edges weighted by their worst margin;
// a maximum-weight matching then selects the most robust global assignment.
package assign
