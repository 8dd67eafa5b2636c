//go:build !cgo

package sqlite

import _ "modernc.org/sqlite"

// Pure Go driver for builds without a C toolchain.
const driverName = "sqlite"
