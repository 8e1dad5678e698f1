// Package logfields holds the canonical slog attribute names used across docweave.
package logfields

import (
	"log/slog"
	"time"
)

const (
	KeyRunID      = "run_id"
	KeyRepo       = "repository"
	KeyPath       = "path"
	KeyTarget     = "target"
	KeySource     = "source"
	KeyURL        = "url"
	KeyName       = "name"
	KeyNamespace  = "namespace"
	KeyCount      = "count"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Namespace(ns string) slog.Attr   { return slog.String(KeyNamespace, ns) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Stage(s string) slog.Attr        { return slog.String(KeyStage, s) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
