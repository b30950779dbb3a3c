// Package types defines the shared Go types used by every stage of the
// pairing engine and by the inventory collaborators. These are the canonical
// in-memory representations of components, sensor calibrations, pairings and
// assignments, separate from any storage format.
package types
