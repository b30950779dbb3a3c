// Package matching solves weighted bipartite matching problems with the
// Hungarian (Kuhn-Munkres) algorithm.
//
// Graphs are given as a list of edges between left indices [0, L) and right
// indices [0, R). Missing edges are forbidden. Two objectives are offered:
//
//   - MinWeight: among matchings of maximum cardinality, one of minimum
//     total weight.
//   - MaxWeight: a matching of maximum total weight, of any cardinality.
//
// Loops run in fixed index order, so identical input gives identical output.
// Callers sort their vertices before numbering them to make tie-breaking
// reproducible.
package matching
