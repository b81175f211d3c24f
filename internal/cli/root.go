// Package cli is the operator command line for the credit ledger: schema
// migration, user provisioning, credit adjustments, reconciliation and
// token issuing.
package cli

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/labelhub/internal/config"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/database"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
	"github.com/MrJamesThe3rd/labelhub/internal/store"
	"github.com/MrJamesThe3rd/labelhub/internal/store/postgres"
)

// env is what a command needs to reach the ledger.
type env struct {
	ledger  *ledger.Service
	credits *credit.Service
	migrate func(ctx context.Context) error
	close   func()
}

// opener connects a command to a storage backend.
type opener func(ctx context.Context, cfg *config.Config) (*env, error)

func newEnv(backend store.Backend) *env {
	balances := ledger.NewService(backend)

	return &env{
		ledger:  balances,
		credits: credit.NewService(balances, pricing.NewTable(pricing.Defaults()), backend),
		migrate: func(context.Context) error { return nil },
		close:   func() {},
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*env, error) {
	if cfg.DB.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("ledgerctl needs DB_DRIVER=%s, got %q", config.DriverPostgres, cfg.DB.Driver)
	}

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pg := postgres.New(db)

	e := newEnv(pg)
	e.migrate = pg.Migrate
	e.close = func() { _ = db.Close() }

	return e, nil
}

// newRootCmd builds the ledgerctl command tree. open is used by every command
// that touches storage.
func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the LabelHub credit ledger",
		Long: `ledgerctl runs operator tasks against the LabelHub database.
Configuration comes from the environment, or a .env file in the working
directory, using the same variables as the API server.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	root.AddCommand(
		newMigrateCmd(open),
		newUserCmd(open),
		newCreditCmd(open),
		newReconcileCmd(open),
		newTokenCmd(),
	)

	return root
}

// Execute runs ledgerctl against Postgres.
func Execute(ctx context.Context) error {
	return newRootCmd(openPostgres).ExecuteContext(ctx)
}

// withEnv loads the configuration, opens storage and hands both to fn.
func withEnv(cmd *cobra.Command, open opener, fn func(e *env) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	e, err := open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer e.close()

	return fn(e)
}
