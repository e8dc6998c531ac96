//go:build !sqlite_cgo

package storage

// Default build. The SQLite driver is pure Go and ships FTS5, so storage
// alone needs no C compiler. The binary still needs cgo because the Java
// parser links tree-sitter.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
