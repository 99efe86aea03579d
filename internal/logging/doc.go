// Package logging provides structured slog logging for textdex.
// With --debug or log.file, JSON records are also written to
// ~/.textdex/logs/textdex.log with size-based rotation, and Tail reads
// them back for the logs command. Otherwise logs go to stderr only.
package logging
