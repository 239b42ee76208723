// Command migrate creates or updates the database schema.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/infrastructure/config"
	"github.com/facturasegura/backend/internal/infrastructure/logger"
	"github.com/facturasegura/backend/internal/infrastructure/persistence"
	"github.com/facturasegura/backend/internal/infrastructure/persistence/models"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the tables that would be migrated without touching the database")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	tables := []any{
		&models.DocumentModel{},
		&models.ValidationRunModel{},
		&models.ValidationResultModel{},
		&models.ValidationQueueModel{},
		&models.CacheEntryModel{},
		&models.ConnectivityLogModel{},
	}

	if *dryRun {
		for _, table := range tables {
			fmt.Printf("would migrate %T\n", table)
		}
		return
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}()

	if err := db.DB.AutoMigrate(tables...); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migration completed", zap.Int("tables", len(tables)))
}
