package main

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/pkg/config"
	"github.com/noah-isme/learning-center-api/pkg/database"
	"github.com/noah-isme/learning-center-api/pkg/logger"
)

const usage = "usage: migrate up|down|version"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db.DB, logr)
	if err != nil {
		logr.Fatal("failed to load migrations", zap.Error(err))
	}

	switch os.Args[1] {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "version":
		version, dirty, verr := migrator.Version()
		if verr == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
		err = verr
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("migration failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}
