// Package pipeline composes decoding, segmentation, feature extraction,
// scaling, classification and aggregation into the single path shared by the
// CLI, the HTTP server and the dataset builder.
package pipeline
