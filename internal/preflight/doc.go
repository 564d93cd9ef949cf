// Package preflight provides readiness checks for the filesystem paths,
// external binaries and object store a run depends on.
//
// The runner calls RunAll before fetching a batch; any failed check aborts the
// run with a configuration error so no item is started against a broken
// environment. The deps CLI command reuses the binary checks for display.
package preflight
