/*
main.go - Application entry point

PURPOSE:
  Command-line entry point of the tailoring shop book: runs the HTTP server
  and the maintenance commands that operate on the same database.

COMMANDS:
  serve    Start the HTTP API, backup scheduler and connectivity monitor
  backup   Create, list or restore backups
  export   Write the export document to a file or stdout
  import   Replace the book's contents from an export document
  migrate  Migrate the database schema to a given version
  drain    Replay pending offline changes now
  seed     Load sample data for demos

ENVIRONMENT:
  Read from the environment and an optional .env file, see config/config.go.
  The --db flag overrides TAILOR_DB_PATH.

EXAMPLES:
  # Run with file database
  tailorbook serve --db ./data/tailorbook.db

  # Back up before an upgrade
  tailorbook export backup.json

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
