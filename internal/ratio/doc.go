// Package ratio pairs family-A components with family-B components whose
// flow ratio stays inside the target band at every probe pressure.
//
// Match builds one edge per admissible (A, B) combination, weighted by the
// mean squared deviation of the ratio vector from the target, and solves a
// maximum-cardinality minimum-weight matching. Candidates are sorted by ID
// before the graph is numbered, so identical input yields identical pairings.
package ratio
