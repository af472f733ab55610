// Package logging configures slog for taxidx. With --debug or a log file
// configured, JSON logs go to a size-rotated file under ~/.taxidx/logs/ and
// can be read back with `taxidx logs`. Otherwise logs are text on stderr.
package logging
