// Package cache defines the disk-backed store that materializes resources as
// StoragePath/<name>.json files. The store exposes read/write primitives with
// safe semantics (temp file + rename) so a failed or interrupted write never
// leaves a partial entry behind, and surfaces file info (size, modtime) for
// listings. Name validation lives here because the name is the path.
package cache
