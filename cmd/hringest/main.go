// Command hringest loads HR CSV data (departments, jobs, employees) into a
// relational store and reports on it.
//
// Usage:
//
//	hringest migrate
//	hringest ingest --table departments --source ./departments.csv
//	hringest serve
//	hringest report hiring-by-quarter --year 2021 --format csv
//	hringest config validate
//
// Process settings come from HRINGEST_* environment variables (optionally a
// .env file); flags override them.
package main

import (
	"fmt"
	"os"

	// register all backends with the storage factory.
	_ "hringest/internal/storage/all"
)

func main() {
	cmd, a := newRootCmd()
	err := cmd.Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
