// Package storage provides the optional delivery journal.
//
// Every notification attempt (sent, failed or suppressed as a duplicate) can
// be appended here for later inspection. The journal is write-only from the
// bot's point of view; nothing is read back on startup.
package storage
