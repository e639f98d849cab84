// Package window implements a sliding time window of samples.
//
// A Window keeps the samples appended during the trailing width W and evicts
// older ones lazily, on append. Independently of eviction it counts every
// sample ever appended, so callers get both a rolling view for averaging and a
// monotonic lifetime total.
package window
