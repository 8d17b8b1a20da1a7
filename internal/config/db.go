package config

import (
	"context"
	"fmt"

	intdb "conductor/internal/db"
	"conductor/internal/utils"
)

// ConnectDB opens the ledger store for env and ensures its schema.
func ConnectDB(ctx context.Context, env Env) (*intdb.Store, error) {
	store, err := intdb.Open(ctx, env.DBDriver, env.DataSource())
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	utils.Info("database connected", "driver", env.DBDriver)
	return store, nil
}
