package main

import (
	"context"
	"fmt"

	"todo-api/app/config"
	"todo-api/app/services"
	"todo-api/app/startup"

	"github.com/charmbracelet/log"
)

type stores struct {
	todos   services.TodoStore
	logs    services.LogStore
	schemas []startup.SchemaEnsurer
	close   func()
}

// prepareStores backs up the data file, opens the configured backend and
// ensures its schema. The store is closed again when any step fails.
func prepareStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, error) {
	// The graph store keeps no local file.
	dataFile := cfg.DatabaseFile
	if cfg.Store == config.StoreNeo4j {
		dataFile = ""
	}

	var st *stores
	open := func(ctx context.Context) ([]startup.SchemaEnsurer, error) {
		var err error
		st, err = openStores(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return st.schemas, nil
	}
	if err := startup.NewSequencer(dataFile, cfg.BackupDir, logger).Run(ctx, open); err != nil {
		if st != nil {
			st.close()
		}
		return nil, fmt.Errorf("startup: %w", err)
	}
	return st, nil
}

// openStores connects the configured backend.
func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, error) {
	switch cfg.Store {
	case config.StoreNeo4j:
		driver, err := config.InitNeo4j(ctx, cfg.Neo4j)
		if err != nil {
			return nil, err
		}
		todos := services.NewNeo4jTodoService(driver)
		logs := services.NewNeo4jLogService(driver)
		return &stores{
			todos:   todos,
			logs:    logs,
			schemas: []startup.SchemaEnsurer{todos, logs},
			close:   func() { driver.Close(context.Background()) },
		}, nil
	default:
		db, err := config.InitSQLite(cfg.DatabaseFile, logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		todos := services.NewTodoService(db)
		logs := services.NewLogService(db)
		return &stores{
			todos:   todos,
			logs:    logs,
			schemas: []startup.SchemaEnsurer{todos, logs},
			close:   func() { sqlDB.Close() },
		}, nil
	}
}
