package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/monitoring"
	"github.com/sells-group/creator-credit/internal/store"
)

var evaluationsCmd = &cobra.Command{
	Use:   "evaluations",
	Short: "Inspect stored evaluations",
	Long:  "Commands for listing, viewing, and summarizing stored evaluations.",
}

// openStore validates store config and returns a migrated store.
func openStore(cmd *cobra.Command) (store.Store, error) {
	ctx := cmd.Context()
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// -- evaluations list --

var evaluationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evaluations, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := evaluationFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		evs, err := st.ListEvaluations(cmd.Context(), filter)
		if err != nil {
			return eris.Wrap(err, "evaluations list")
		}

		if format != "table" {
			if evs == nil {
				evs = []model.Evaluation{}
			}
			return writeFormatted(cmd.OutOrStdout(), format, evs)
		}
		if len(evs) == 0 {
			fmt.Fprintln(os.Stderr, "No evaluations found.")
			return nil
		}
		formatEvaluationsList(cmd.OutOrStdout(), evs)
		return nil
	},
}

// -- evaluations show --

var evaluationsShowCmd = &cobra.Command{
	Use:   "show <evaluation-id>",
	Short: "Show full details of an evaluation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ev, err := st.GetEvaluation(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "evaluations show")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeFormatted(cmd.OutOrStdout(), format, ev)
	},
}

// -- evaluations stats --

var evaluationsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate decision statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		channelID, _ := cmd.Flags().GetString("channel")
		since, _ := cmd.Flags().GetDuration("since")

		evs, err := st.ListEvaluations(cmd.Context(), model.EvaluationFilter{
			ChannelID: channelID,
			Limit:     10000, // high limit for stats
		})
		if err != nil {
			return eris.Wrap(err, "evaluations stats")
		}

		var cutoff time.Time
		if since > 0 {
			cutoff = time.Now().Add(-since)
		}
		formatEvaluationStats(cmd.OutOrStdout(), computeEvaluationStats(evs, cutoff))
		return nil
	},
}

// -- evaluations health --

var evaluationsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check recent evaluations against alert thresholds",
	Long:  "Collects one monitoring snapshot, prints it and sends any triggered alerts to the configured webhook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, alerts, err := newHealthChecker(st).Check(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "evaluations health")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeFormatted(cmd.OutOrStdout(), format, healthReport{Snapshot: snap, Alerts: alerts})
	},
}

type healthReport struct {
	Snapshot *monitoring.MetricsSnapshot `json:"snapshot"`
	Alerts   []monitoring.Alert          `json:"alerts"`
}

func newHealthChecker(st store.Store) *monitoring.Checker {
	return monitoring.NewChecker(
		monitoring.NewCollector(st),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

func evaluationFilterFromFlags(cmd *cobra.Command) (model.EvaluationFilter, error) {
	channelID, _ := cmd.Flags().GetString("channel")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := model.EvaluationFilter{
		ChannelID: channelID,
		Status:    model.EvaluationStatus(status),
		Limit:     limit,
	}
	if status != "" && !filter.Status.Valid() {
		return filter, eris.Errorf("evaluations: unknown status %q (want decided, failed or invalid_decision)", status)
	}
	return filter, nil
}

func init() {
	evaluationsListCmd.Flags().String("channel", "", "filter by channel ID")
	evaluationsListCmd.Flags().String("status", "", "filter by status (decided, failed, invalid_decision)")
	evaluationsListCmd.Flags().Int("limit", 50, "max number of evaluations to display")
	evaluationsListCmd.Flags().String("format", "table", "output format: table, json or yaml")

	evaluationsShowCmd.Flags().String("format", "json", "output format: json or yaml")

	evaluationsStatsCmd.Flags().String("channel", "", "restrict to one channel ID")
	evaluationsStatsCmd.Flags().Duration("since", 0, "time window for stats (e.g. 24h, 168h; default all)")

	evaluationsCmd.AddCommand(evaluationsListCmd)
	evaluationsCmd.AddCommand(evaluationsShowCmd)
	evaluationsHealthCmd.Flags().String("format", "json", "output format: json or yaml")

	evaluationsCmd.AddCommand(evaluationsStatsCmd)
	evaluationsCmd.AddCommand(evaluationsHealthCmd)
	rootCmd.AddCommand(evaluationsCmd)
}

// evaluationStats holds aggregate statistics over a set of evaluations.
type evaluationStats struct {
	Total           int
	Approved        int
	Denied          int
	Failed          int
	InvalidDecision int
	Requested       int64
	ApprovedAmount  int64
}

// ApprovalRate is approvals over decided evaluations.
func (s evaluationStats) ApprovalRate() float64 {
	decided := s.Approved + s.Denied
	if decided == 0 {
		return 0
	}
	return float64(s.Approved) / float64(decided)
}

// computeEvaluationStats aggregates evs created at or after cutoff. A zero
// cutoff includes everything.
func computeEvaluationStats(evs []model.Evaluation, cutoff time.Time) evaluationStats {
	var s evaluationStats
	for _, ev := range evs {
		if !cutoff.IsZero() && ev.CreatedAt.Before(cutoff) {
			continue
		}
		s.Total++
		switch ev.Status {
		case model.StatusDecided:
			s.Requested += ev.LoanRequested
			if ev.Decision != nil && ev.Decision.Approved {
				s.Approved++
				s.ApprovedAmount += ev.Decision.ApprovedAmount
			} else {
				s.Denied++
			}
		case model.StatusFailed:
			s.Failed++
		case model.StatusInvalidDecision:
			s.InvalidDecision++
		}
	}
	return s
}

// formatEvaluationsList writes a tabular list of evaluations to out.
func formatEvaluationsList(out io.Writer, evs []model.Evaluation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCHANNEL\tSTATUS\tREQUESTED\tAPPROVED\tCREATED")
	for _, ev := range evs {
		approved := "-"
		if ev.Decision != nil {
			approved = fmt.Sprintf("%d", ev.Decision.ApprovedAmount)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			ev.ID, ev.ChannelID, ev.Status, ev.LoanRequested, approved,
			ev.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

// formatEvaluationStats writes a summary block to out.
func formatEvaluationStats(out io.Writer, s evaluationStats) {
	_, _ = fmt.Fprintf(out, "Total:            %d\n", s.Total)
	_, _ = fmt.Fprintf(out, "Approved:         %d\n", s.Approved)
	_, _ = fmt.Fprintf(out, "Denied:           %d\n", s.Denied)
	_, _ = fmt.Fprintf(out, "Failed:           %d\n", s.Failed)
	_, _ = fmt.Fprintf(out, "Invalid decision: %d\n", s.InvalidDecision)
	_, _ = fmt.Fprintf(out, "Approval rate:    %.1f%%\n", s.ApprovalRate()*100)
	_, _ = fmt.Fprintf(out, "Requested:        %d\n", s.Requested)
	_, _ = fmt.Fprintf(out, "Approved amount:  %d\n", s.ApprovedAmount)
}
