// Package dataset builds labeled feature datasets from directories of fake
// and real recordings.
//
// Collect lists the files, a Builder extracts one whole-file vector per file
// on a pool of workers, and the result is saved as a zstd-compressed msgpack
// archive. StratifiedSplit produces reproducible train/test partitions.
package dataset
