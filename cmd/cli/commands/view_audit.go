package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/core/services"
)

// ViewAuditCmd creates the view-audit command
func ViewAuditCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view-audit <org-id>",
		Short: "Show recent pipeline runs for an organisation",
		Long:  "List the most recent match audit entries, including outcome, winner, and how many candidates were ranked.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID := args[0]
			limit, _ := cmd.Flags().GetInt("limit")

			app.Logger.Debug("view-audit command",
				zap.String("org_id", orgID),
				zap.Int("limit", limit))

			entries, err := services.ViewAudit(app.Ctx, app.Database, app.Logger, orgID, limit)
			if err != nil {
				return fmt.Errorf("view-audit failed: %w", err)
			}

			if len(entries) == 0 {
				fmt.Printf("\nNo audit entries found for organisation %s\n\n", orgID)
				return nil
			}

			fmt.Printf("\n📋 Match Audit Log (%d entries)\n\n", len(entries))
			for _, e := range entries {
				status := "❌"
				if e.Success {
					status = "✅"
				}
				fmt.Printf("%s Booking %s\n", status, e.BookingID)
				if e.AssignedMedicID != "" {
					fmt.Printf("   Medic:      %s (%.2f)\n", e.AssignedMedicID, e.ConfidenceScore)
				}
				if e.FailureReason != "" {
					fmt.Printf("   Reason:     %s\n", e.FailureReason)
				}
				fmt.Printf("   Candidates: %d ranked\n\n", len(e.Candidates))
			}

			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of entries to show")

	return cmd
}
