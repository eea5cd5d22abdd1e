// Package features computes mel-frequency cepstral coefficients and collapses
// them over time into one fixed-length vector per segment.
package features
