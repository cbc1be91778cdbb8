package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/core/services"
)

// DefineCoverCmd creates the define-cover command
func DefineCoverCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "define-cover",
		Short: "Expand standing cover rules into bookings",
		Long:  "Expand the configured recurring coverage rules into pending bookings over the given horizon. Re-runs skip dates that already have one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			horizonDays, _ := cmd.Flags().GetInt("horizon-days")

			app.Logger.Debug("define-cover command", zap.Int("horizon_days", horizonDays))

			result, err := services.DefineCover(app.Ctx, app.Database, app.Cfg, app.Logger, horizonDays)
			if err != nil {
				return fmt.Errorf("define-cover failed: %w", err)
			}

			fmt.Printf("\n📅 Standing Cover Expansion\n\n")
			fmt.Printf("Occurrences generated: %d\n", result.Generated)
			fmt.Printf("Bookings created:      %d\n", result.Inserted)
			if skipped := result.Generated - result.Inserted; skipped > 0 {
				fmt.Printf("Already existing:      %d\n", skipped)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Int("horizon-days", 28, "How many days ahead to materialise cover bookings")

	return cmd
}
