// Package outlier flags components whose measured flow deviates abnormally
// from the rest of their batch.
//
// For every probe index, Detect fits one least-squares line of flow against
// the regressor (the geometric parameter, or its square for the area law)
// across the batch, then standardises the residuals with the population
// standard deviation. A component whose |residual - mean| / std exceeds the
// threshold at any probe is an outlier. When std is zero nothing is flagged.
//
// Detect is pure: inputs are sorted by ID before fitting, so the result does
// not depend on input order.
package outlier
