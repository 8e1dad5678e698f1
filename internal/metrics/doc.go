// Package metrics records pipeline observations.
//
// Components receive a Recorder and default to NoopRecorder, so metrics can
// be left unconfigured without nil checks at call sites. The daemon swaps in
// a PrometheusRecorder and serves its registry through HTTPHandler.
package metrics
