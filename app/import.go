package main

import (
	"context"
	"fmt"
	"os"

	"todo-api/app/config"
	"todo-api/app/importer"
	"todo-api/app/logging"

	"github.com/spf13/pflag"
)

// runImport loads an exported JSON document into the configured store.
func runImport(args []string) error {
	var file string
	cfg, err := config.Load(args, func(fs *pflag.FlagSet) {
		fs.StringVar(&file, "file", "db.json", "JSON document to import")
	})
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	st, err := prepareStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	im, err := importer.New(st.todos, st.logs, logger)
	if err != nil {
		return err
	}
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	res, err := im.Import(ctx, f)
	if err != nil {
		return err
	}
	logger.Info("migration successful", "file", file, "todos", res.Todos, "logs", res.Logs, "skipped_logs", res.SkippedLogs)
	return nil
}
