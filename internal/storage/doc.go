// Package storage persists the subscriber set.
//
// Every driver stores the whole set and replaces it atomically on Save, so a
// crash between two saves leaves either the old or the new set on disk, never
// a partial one:
//   - "file":   one chat id per line, written to <path>.tmp then renamed
//   - "sqlite": subscribers table, replaced inside one transaction
//   - "gcs":    same line format as "file", stored as a single object
package storage
