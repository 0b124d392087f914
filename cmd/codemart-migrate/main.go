package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"codemart/internal/database/migrations"
)

func main() {
	var (
		dsn  = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
		dir  = flag.String("dir", "./migrations", "Directory containing migration files")
		down = flag.Bool("down", false, "Roll back all migrations instead of applying them")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("POSTGRES_DSN not set and -dsn not given")
	}

	ctx := context.Background()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(*dsn))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(db, *dir)
	defer runner.Close()

	if *down {
		log.Println("Rolling back migrations...")
		if err := runner.MigrateDown(); err != nil {
			log.Fatalf("❌ Migration down failed: %v", err)
		}
	} else {
		log.Println("Applying migrations...")
		if err := runner.MigrateUp(); err != nil {
			log.Fatalf("❌ Migration up failed: %v", err)
		}
	}

	log.Println("✅ Done.")
}
