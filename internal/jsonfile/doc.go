// Package jsonfile persists a slice of rows as one pretty-printed JSON array.
//
// # Overview
//
// [Array] is a thin handle on a file path. Every [Array.Load] reads and decodes
// the whole file and every [Array.Save] rewrites it in full. Nothing is cached
// in memory: the file on disk is the only source of truth, so hand edits are
// picked up on the next read.
//
// # Writes
//
// Saves go to a temporary file in the same directory which is then renamed over
// the target. A concurrent reader sees either the previous content or the new
// one, never a truncated file.
//
// # Concurrency
//
// Array does no locking. Callers doing read-modify-write cycles must serialize
// them; see storage.Store.
package jsonfile
