package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/next-action-service/internal/models"
	"github.com/PratikDhanave/next-action-service/internal/prediction"
)

var (
	predictUser   string
	predictAction string
	predictLimit  int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Show the ranked next actions for a user",
	Long: `Show what the user did after the given action, ranked by frequency.

Examples:
  nextmove predict --user user1 --action open
  nextmove predict --user user1 --action open --limit 3`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&predictUser, "user", "u", "", "User ID")
	predictCmd.Flags().StringVarP(&predictAction, "action", "a", "", "Current action name")
	predictCmd.Flags().IntVarP(&predictLimit, "limit", "n", 0, "Maximum number of sequences to show (0 = all)")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	_, st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	pred, err := prediction.NewService(st).Predict(ctx, prediction.Input{
		CurrentAction: predictAction,
		UserID:        predictUser,
		Limit:         predictLimit,
	})
	if err != nil {
		return err
	}
	return renderPrediction(cmd.OutOrStdout(), pred)
}

func renderPrediction(out io.Writer, pred models.Prediction) error {
	fmt.Fprintf(out, "After %q (%d occurrences):\n", pred.CurrentAction, pred.TotalOccurrences)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NEXT ACTION\tFREQUENCY\tPROBABILITY")
	for _, s := range pred.Sequences {
		fmt.Fprintf(w, "%s\t%d\t%.2f%%\n", s.NextAction, s.Frequency, s.Probability)
	}
	return w.Flush()
}
