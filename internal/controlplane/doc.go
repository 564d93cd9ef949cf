// Package controlplane is the HTTP client for the work-source API: fetching
// the next batch of locators and posting the completion report. Both calls run
// through the retry policy; a "no work" answer is not an error.
package controlplane
