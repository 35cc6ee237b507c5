// Package storage implements the entry store: a single JSON array file of
// key/content entries plus an append-only, human-readable history log.
//
// Keys are unique and compared case-sensitively. The store sets every entry's
// modified timestamp; callers never supply it. See [Store] for the
// concurrency model.
package storage
