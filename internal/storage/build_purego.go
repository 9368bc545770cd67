//go:build purego || !sqlite_vec

package storage

// Default build. No C toolchain needed:
//
//	CGO_ENABLED=0 go build ./...
//
// Candidate fragments are filtered in SQL and ranked by cosine similarity
// in Go. Fine for collections up to a few hundred thousand fragments.
// Driver: modernc.org/sqlite.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
