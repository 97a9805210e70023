package migrations

import (
	_ "embed"

	"github.com/goran-ethernal/IndexGraph/internal/db"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
)

//go:embed 001_indexer_state.sql
var mig001 string

//go:embed 002_prices.sql
var mig002 string

//go:embed 003_tracked_txs.sql
var mig003 string

//go:embed 004_aggregated_l2_costs.sql
var mig004 string

// All returns every schema migration in order.
func All() []db.Migration {
	return []db.Migration{
		{ID: "001_indexer_state.sql", SQL: mig001},
		{ID: "002_prices.sql", SQL: mig002},
		{ID: "003_tracked_txs.sql", SQL: mig003},
		{ID: "004_aggregated_l2_costs.sql", SQL: mig004},
	}
}

// RunMigrations brings the database described by cfg up to date.
func RunMigrations(cfg config.DatabaseConfig) error {
	return db.RunMigrations(cfg, All())
}
