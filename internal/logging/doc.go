// Package logging provides file-based logging with rotation for docsearchd.
// Logs are written as JSON to ~/.docsearchd/logs/server.log and, by default,
// also to stderr.
//
// Without --debug the level is info; with --debug it is debug.
package logging
