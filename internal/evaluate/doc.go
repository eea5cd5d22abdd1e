// Package evaluate scores a classifier against a labeled dataset.
package evaluate
