// Package log provides the structured logging facade used by the replay
// client library.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog, so output interoperates with the slog ecosystem
// while callers code against this facade.
//
// Quick start
//
//	l := log.New(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithJSONFormat(),
//	)
//	l = l.With(log.Str("table", "experience")).WithComponent("writer")
//	l.Info("stream opened", log.Uint64("episode", id))
//
// Tests and embedders that want silence use log.Nop().
package log
