// Package all wires every built-in storage backend into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and metrics-table DDL with the storage package. Importing
// it makes the following storage kinds available at runtime:
//
//   - "postgres" (cleanse/internal/storage/postgres)
//   - "mysql"    (cleanse/internal/storage/mysql)
//   - "mssql"    (cleanse/internal/storage/mssql)
//   - "sqlite"   (cleanse/internal/storage/sqlite)
//
// A binary that needs only a subset of backends can blank-import the wanted
// backend packages directly instead of this one.
package all

import (
	_ "cleanse/internal/storage/mssql"
	_ "cleanse/internal/storage/mysql"
	_ "cleanse/internal/storage/postgres"
	_ "cleanse/internal/storage/sqlite"
)
