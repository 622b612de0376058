// Command snapshot-init creates or migrates the sqlite schema used by
// internal/snapshot's sqlite backend.
package main

import (
	"embed"
	"flag"
	"fmt"
	"os"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func main() {
	dbPath := flag.String("db", "", "path to the sqlite snapshot file to create or migrate")
	down := flag.Bool("down", false, "roll back all applied migrations instead of applying pending ones")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "snapshot-init: -db is required")
		os.Exit(2)
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		cclog.Fatalf("snapshot-init: load embedded migrations: %s", err.Error())
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, fmt.Sprintf("sqlite3://%s", *dbPath))
	if err != nil {
		cclog.Fatalf("snapshot-init: open %s: %s", *dbPath, err.Error())
	}
	defer m.Close()

	var runErr error
	if *down {
		runErr = m.Down()
	} else {
		runErr = m.Up()
	}
	if runErr != nil && runErr != migrate.ErrNoChange {
		cclog.Fatalf("snapshot-init: migration failed: %s", runErr.Error())
	}

	v, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		cclog.Fatalf("snapshot-init: read version: %s", err.Error())
	}
	cclog.Infof("snapshot-init: %s now at version %d (dirty=%v)", *dbPath, v, dirty)
}
