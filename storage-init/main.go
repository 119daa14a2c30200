package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"

	"tasks-api/config"
	"tasks-api/storage"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, closer := config.NewLogger(cfg)
	defer closer.Close()

	if cfg.StorageBackend != config.BackendTable {
		logger.WithField("backend", cfg.StorageBackend).Info("nothing to provision")
		return
	}

	logger.WithField("table", cfg.TasksTable).Info("storage init starting")
	store, err := storage.New(cfg.StorageConnectionString, cfg.TasksTable, cfg.TasksPartition)
	if err != nil {
		logger.Errorf("storage: %v", err)
		os.Exit(1)
	}
	if err := store.CreateTable(context.Background()); err != nil {
		logger.Errorf("create table %s: %v", cfg.TasksTable, err)
		os.Exit(1)
	}
	logger.Info("storage init complete")
}
