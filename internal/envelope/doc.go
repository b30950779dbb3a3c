// Package envelope checks a combined-output curve against the specification
// envelope.
//
// Validate fits a least-squares polynomial of fixed order to (signal, output)
// samples, evaluates it at every envelope probe, and reports the distance to
// the nearer bound at each probe. The curve passes when every prediction lies
// inside [min, max]; WorstMargin is the smallest of those distances and is
// negative for a failing curve.
package envelope
