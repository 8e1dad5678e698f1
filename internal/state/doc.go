// Package state persists run history in SQLite: one row per pipeline run,
// the fingerprint of every file the run published, and the broken links it
// found.
package state
