// Package logfields holds the canonical slog keys used across lotwatch.
package logfields

import (
	"log/slog"
	"time"
)

const (
	KeyStore     = "store"
	KeyConsumer  = "consumer"
	KeyDelayMS   = "delay_ms"
	KeyFailure   = "failure"
	KeyRevision  = "revision"
	KeyPatchKey  = "patch_key"
	KeyPatchKind = "patch_kind"
	KeyEntityID  = "entity_id"
	KeyCount     = "count"
	KeySubject   = "subject"
	KeyError     = "error"
)

func Store(name string) slog.Attr        { return slog.String(KeyStore, name) }
func Consumer(key string) slog.Attr      { return slog.String(KeyConsumer, key) }
func Delay(d time.Duration) slog.Attr    { return slog.Int64(KeyDelayMS, d.Milliseconds()) }
func Failure(kind string) slog.Attr      { return slog.String(KeyFailure, kind) }
func Revision(rev uint64) slog.Attr      { return slog.Uint64(KeyRevision, rev) }
func PatchKey(key string) slog.Attr      { return slog.String(KeyPatchKey, key) }
func PatchKind(kind string) slog.Attr    { return slog.String(KeyPatchKind, kind) }
func EntityID(id string) slog.Attr       { return slog.String(KeyEntityID, id) }
func Count(n int) slog.Attr              { return slog.Int(KeyCount, n) }
func Subject(subject string) slog.Attr   { return slog.String(KeySubject, subject) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
