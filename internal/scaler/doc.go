// Package scaler fits, applies and persists the per-feature standardization
// used between feature extraction and classification.
package scaler
