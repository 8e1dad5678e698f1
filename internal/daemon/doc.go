// Package daemon runs the build pipeline on a cron schedule, reloads its
// configuration when the file changes, and serves health, metrics and run
// history over HTTP.
package daemon
