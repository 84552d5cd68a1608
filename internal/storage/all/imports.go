// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories and DDL bootstrappers with the
// storage package.
//
// Importing this package makes the following storage kinds available:
//
//   - "postgres" (bulk copy and row-wise)
//   - "mssql"    (bulk copy)
//   - "sqlite"   (row-wise)
//   - "mysql"    (row-wise)
//
// Typical usage:
//
//	import _ "hringest/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:"})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
//	if err := storage.EnsureSchema(ctx, repo); err != nil {
//	    // handle DDL error
//	}
//
// A binary that needs only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "hringest/internal/storage/mssql"
	_ "hringest/internal/storage/mysql"
	_ "hringest/internal/storage/postgres"
	_ "hringest/internal/storage/sqlite"
)
