// Package upload chooses between single-shot and multipart transfers and
// drives them against an object store backend, aborting partial multipart
// state on any failure.
package upload
