package main

import (
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/migrations/sealdb"
	"github.com/Illuminfti/ika-tensei-relay/pkg/pgutil"
	mghelper "github.com/Illuminfti/ika-tensei-relay/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	// Connect to database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for relayer database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, sealdb.Migrations)
	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
