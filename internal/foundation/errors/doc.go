// Package errors provides the classified error primitives used across docweave.
//
// Every package builds its failures through the fluent builder so callers can
// route on category (exit codes, HTTP status, retry) without string matching:
//
//	err := errors.WrapError(cause, errors.CategoryFileSystem, "failed to read document").
//		WithContext("path", path).
//		Build()
package errors
