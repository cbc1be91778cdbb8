package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/core/matcher"
	"github.com/sitemedic/sitemedic/pkg/core/services"
)

// MatchCmd creates the match command
func MatchCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <booking-id>",
		Short: "Run the assignment pipeline for a booking",
		Long:  "Filter the medic pool, rank eligible candidates, and auto-confirm an assignment or escalate to manual review.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID := args[0]
			skipCompliance, _ := cmd.Flags().GetBool("skip-compliance")

			app.Logger.Debug("match command",
				zap.String("booking_id", bookingID),
				zap.Bool("skip_compliance", skipCompliance))

			result, err := services.MatchBooking(
				app.Ctx,
				app.Database,
				app.Database,
				app.Database,
				app.Logger,
				bookingID,
				skipCompliance,
			)
			if err != nil {
				return fmt.Errorf("match failed: %w", err)
			}

			fmt.Printf("\n🩺 Booking Match Results\n\n")
			fmt.Printf("Booking ID:  %s\n", result.BookingID)
			switch result.Outcome {
			case matcher.OutcomeAssigned:
				fmt.Printf("Status:      ✅ ASSIGNED\n")
				fmt.Printf("Medic:       %s\n", result.AssignedMedicID)
				fmt.Printf("Confidence:  %.2f\n", result.ConfidenceScore)
			case matcher.OutcomeLowConfidence:
				fmt.Printf("Status:      ⚠️  MANUAL REVIEW\n")
				fmt.Printf("Confidence:  %.2f\n", result.ConfidenceScore)
				fmt.Printf("Reason:      %s\n", result.Reason)
			case matcher.OutcomeNoCandidates:
				fmt.Printf("Status:      ❌ NO MATCH\n")
				fmt.Printf("Reason:      %s\n", result.Reason)
			}
			fmt.Println()

			if len(result.Candidates) > 0 {
				fmt.Printf("🏅 Top Candidates:\n\n")
				for i, c := range result.Candidates {
					fmt.Printf("  %d. %-25s %6.2f\n", i+1, c.Medic.Name, c.Score.Total)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().Bool("skip-compliance", false, "Skip the regulatory compliance stage (test harnesses only)")

	return cmd
}
