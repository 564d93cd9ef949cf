// Package report builds the single completion report for a batch and delivers
// it to the control plane.
//
// Status is Completed when nothing failed, PartialSuccess when some items
// succeeded and some failed, and Failed otherwise. The error sample is bounded
// and the number of omitted errors is reported alongside it.
package report
