// Package verdict combines per-segment probabilities into a single real or
// AI generated decision for a file.
package verdict
