package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/auth"
	"github.com/MrJamesThe3rd/labelhub/internal/config"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
)

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, open, func(e *env) error {
				if err := e.migrate(cmd.Context()); err != nil {
					return fmt.Errorf("failed to migrate: %w", err)
				}

				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")

				return nil
			})
		},
	}
}

func newUserCmd(open opener) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage ledger accounts",
	}

	userCmd.AddCommand(&cobra.Command{
		Use:   "create EMAIL",
		Short: "Create a user with a zero balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(e *env) error {
				u, err := e.ledger.CreateUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.ID, u.Email)

				return nil
			})
		},
	})

	historyCmd := &cobra.Command{
		Use:   "history USER_ID",
		Short: "Show the newest ledger entries of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			limit, _ := cmd.Flags().GetInt("limit")

			return withEnv(cmd, open, func(e *env) error {
				entries, err := e.ledger.History(cmd.Context(), id, limit)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), historyTable(entries))

				return nil
			})
		},
	}

	historyCmd.Flags().Int("limit", 20, "Number of entries to show")
	userCmd.AddCommand(historyCmd)

	return userCmd
}

func newCreditCmd(open opener) *cobra.Command {
	creditCmd := &cobra.Command{
		Use:   "credit",
		Short: "Change user balances",
	}

	adjustCmd := &cobra.Command{
		Use:   "adjust USER_ID AMOUNT",
		Short: "Credit (positive AMOUNT) or debit (negative AMOUNT) a user",
		Long: `Apply an operator balance change. With --top-up the change records a
credit purchase and --reference must carry the external payment id; running
the same top-up twice leaves the balance untouched.

Put -- before the arguments when AMOUNT is negative:

  ledgerctl credit adjust -n "chargeback" -- USER_ID -4.00`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}

			var (
				topUp, _     = cmd.Flags().GetBool("top-up")
				reference, _ = cmd.Flags().GetString("reference")
				note, _      = cmd.Flags().GetString("note")
			)

			return withEnv(cmd, open, func(e *env) error {
				res, err := e.credits.Adjust(cmd.Context(), credit.AdjustParams{
					UserID:    id,
					Amount:    amount,
					TopUp:     topUp,
					Reference: reference,
					Note:      note,
					Actor:     actor.Admin(uuid.Nil),
				})
				if err != nil {
					return err
				}

				if !res.Applied {
					fmt.Fprintf(cmd.OutOrStdout(), "reference already applied, balance %s\n", res.Balance.StringFixed(2))
					return nil
				}

				fmt.Fprintf(cmd.OutOrStdout(), "balance %s\n", res.Balance.StringFixed(2))

				return nil
			})
		},
	}

	adjustCmd.Flags().Bool("top-up", false, "Record a credit purchase")
	adjustCmd.Flags().StringP("reference", "r", "", "External payment id or idempotency key")
	adjustCmd.Flags().StringP("note", "n", "", "Operator note for the audit log")

	creditCmd.AddCommand(adjustCmd)

	return creditCmd
}

func newReconcileCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare cached balances with the ledger",
		Long: `Recompute every balance from the ledger and compare it with the cached
balance and the last entry's snapshot. Exits non-zero if any user drifted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rawID, _ := cmd.Flags().GetString("user")

			return withEnv(cmd, open, func(e *env) error {
				var recs []ledger.Reconciliation

				if rawID != "" {
					id, err := uuid.Parse(rawID)
					if err != nil {
						return fmt.Errorf("invalid user id: %w", err)
					}

					rec, err := e.ledger.Reconcile(cmd.Context(), id)
					if err != nil {
						return err
					}

					recs = append(recs, rec)
				} else {
					all, err := e.ledger.ReconcileAll(cmd.Context())
					if err != nil {
						return err
					}

					recs = all
				}

				fmt.Fprintln(cmd.OutOrStdout(), reconcileTable(recs))

				drifted := 0

				for _, rec := range recs {
					if !rec.Consistent() {
						drifted++
					}
				}

				if drifted > 0 {
					return fmt.Errorf("%d of %d balances are inconsistent", drifted, len(recs))
				}

				return nil
			})
		},
	}

	cmd.Flags().StringP("user", "u", "", "Only reconcile this user")

	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Issue an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var (
				admin, _ = cmd.Flags().GetBool("admin")
				ttl, _   = cmd.Flags().GetDuration("ttl")
				who      = actor.User(id)
			)

			if admin {
				who = actor.Admin(id)
			}

			if ttl <= 0 {
				ttl = cfg.JWT.TTL
			}

			token, err := auth.New(cfg.JWT.Secret, ttl).Issue(who)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}

	cmd.Flags().Bool("admin", false, "Issue an admin token")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT_TTL)")

	return cmd
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			return cellStyle
		})
}

func reconcileTable(recs []ledger.Reconciliation) string {
	t := newTable("USER", "CACHED", "LEDGER", "SNAPSHOT", "ENTRIES", "STATUS")

	for _, rec := range recs {
		status := "ok"
		if !rec.Consistent() {
			status = badStyle.Render("DRIFT")
		}

		t.Row(
			rec.UserID.String(),
			rec.Cached.StringFixed(2),
			rec.LedgerSum.StringFixed(2),
			rec.LastSnapshot.StringFixed(2),
			fmt.Sprint(rec.Entries),
			status,
		)
	}

	return t.String()
}

func historyTable(entries []*ledger.Entry) string {
	t := newTable("WHEN", "DIRECTION", "AMOUNT", "BALANCE", "REASON", "REFERENCE")

	for _, e := range entries {
		t.Row(
			e.CreatedAt.Format(time.DateTime),
			string(e.Direction),
			e.Amount.StringFixed(2),
			e.BalanceAfter.StringFixed(2),
			e.Reason,
			e.Reference,
		)
	}

	return t.String()
}
