package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyModule     = "module"
	KeyScript     = "script"
	KeyTemplate   = "template"
	KeyCategory   = "category"
	KeyKind       = "kind"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyCount      = "count"
	KeyName       = "name"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Module(name string) slog.Attr      { return slog.String(KeyModule, name) }
func Script(path string) slog.Attr      { return slog.String(KeyScript, path) }
func Template(name string) slog.Attr    { return slog.String(KeyTemplate, name) }
func Category(c string) slog.Attr       { return slog.String(KeyCategory, c) }
func Kind(k string) slog.Attr           { return slog.String(KeyKind, k) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func File(f string) slog.Attr           { return slog.String(KeyFile, f) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Name(n string) slog.Attr           { return slog.String(KeyName, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
