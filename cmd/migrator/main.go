package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/IlyasAtabaev731/nickpay/internal/storage/sqlite"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var storagePath, migrationsPath, migrationsTable string
	var down bool

	flag.StringVar(&storagePath, "storage-path", "nickpay.db", "path to the local store")
	flag.StringVar(&migrationsPath, "migrations-path", "./internal/storage/sqlite/migrations", "path to migrations")
	flag.StringVar(&migrationsTable, "migrations-table", sqlite.MigrationsTable, "name of migrations table")
	flag.BoolVar(&down, "down", false, "roll back all migrations instead of applying them")
	flag.Parse()

	if storagePath == "" {
		panic("storage path is required")
	}
	if migrationsPath == "" {
		panic("migrations path is required")
	}
	m, err := migrate.New(
		"file://"+migrationsPath,
		fmt.Sprintf("sqlite://%s?x-migrations-table=%s", storagePath, migrationsTable),
	)

	if err != nil {
		panic(err)
	}

	apply, done := m.Up, "migrations applied successfully"
	if down {
		apply, done = m.Down, "migrations rolled back successfully"
	}

	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}

	fmt.Println(done)
}
