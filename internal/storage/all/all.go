// Package all registers every built-in storage backend. Import it for side
// effects:
//
//	import _ "rosteretl/internal/storage/all"
//
// Kinds made available: "memory", "mssql", "mysql", "postgres", "sqlite".
package all

import (
	_ "rosteretl/internal/storage/memstore"
	_ "rosteretl/internal/storage/mssql"
	_ "rosteretl/internal/storage/mysql"
	_ "rosteretl/internal/storage/postgres"
	_ "rosteretl/internal/storage/sqlite"
)
