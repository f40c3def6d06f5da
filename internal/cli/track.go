package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
	"github.com/PratikDhanave/next-action-service/internal/models"
	"github.com/PratikDhanave/next-action-service/internal/prediction"
	"github.com/PratikDhanave/next-action-service/internal/publish"
	"github.com/PratikDhanave/next-action-service/internal/tracking"
)

var (
	trackUser      string
	trackAction    string
	trackTimestamp string
	trackMeta      []string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Record an action and show what usually follows it",
	Long: `Record one action for a user, then print the predicted next actions.

Examples:
  nextmove track --user user1 --action open
  nextmove track --user user1 --action reply --timestamp 2024-01-20T12:01:00Z
  nextmove track --user user1 --action open --meta source=web --meta device=mobile`,
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().StringVarP(&trackUser, "user", "u", "", "User ID")
	trackCmd.Flags().StringVarP(&trackAction, "action", "a", "", "Action name")
	trackCmd.Flags().StringVar(&trackTimestamp, "timestamp", "", "ISO-8601 timestamp (default now)")
	trackCmd.Flags().StringArrayVar(&trackMeta, "meta", nil, "Metadata as key=value, repeatable")
}

func runTrack(cmd *cobra.Command, _ []string) error {
	in := tracking.Input{UserID: trackUser, ActionName: trackAction}
	if strings.TrimSpace(trackTimestamp) != "" {
		ts, err := models.ParseTimestamp(trackTimestamp)
		if err != nil {
			return fmt.Errorf("invalid --timestamp %q", trackTimestamp)
		}
		in.Timestamp = ts
	}
	meta, err := parseMeta(trackMeta)
	if err != nil {
		return err
	}
	in.Metadata = meta

	ctx := cmd.Context()
	cfg, st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	pub := publish.New(cfg.Kafka)
	defer pub.Close()

	res, err := tracking.NewService(st, pub).Track(ctx, in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Message)
	if res.TransitionRecorded {
		fmt.Fprintf(out, "Transition: %s -> %s\n", res.PreviousAction, strings.TrimSpace(trackAction))
	}

	pred, err := prediction.NewService(st).Predict(ctx, prediction.Input{
		CurrentAction: trackAction,
		UserID:        trackUser,
	})
	if apperr.IsKind(err, apperr.KindNotFound) {
		fmt.Fprintln(out, err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	return renderPrediction(out, pred)
}

// parseMeta turns key=value pairs into a metadata map. Nil when pairs is empty.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --meta %q, want key=value", p)
		}
		meta[k] = v
	}
	return meta, nil
}
