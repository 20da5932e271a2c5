package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/creator-credit/internal/model"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one loan request",
	Long: `Scores a creator's channel, banking ledger and business proposal, asks
the decision oracle for a verdict and stores the evaluation.

Examples:
  # Local ledger, channel statistics from YouTube
  evaluate --channel UCxyz --amount 20000 --banking-data ledger.json

  # Ledger in object storage, channel metrics supplied by hand
  evaluate --channel UCxyz --amount 20000 \
    --banking-data gs://ledgers/ucxyz.json --channel-metrics metrics.json`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.String("channel", "", "channel ID (required)")
	f.Int64("amount", 0, "requested loan amount (required)")
	f.String("banking-data", "", "banking data JSON: local path or gs://bucket/object (required)")
	f.String("channel-metrics", "", "channel metrics JSON file, used instead of the channel feed")
	f.String("proposal", "", "business proposal text (default: read from the proposal directory)")
	f.String("format", "json", "output format: json or yaml")
	f.String("output", "", "output file path (default: stdout)")
	_ = evaluateCmd.MarkFlagRequired("channel")
	_ = evaluateCmd.MarkFlagRequired("amount")
	_ = evaluateCmd.MarkFlagRequired("banking-data")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	channelID, _ := cmd.Flags().GetString("channel")
	amount, _ := cmd.Flags().GetInt64("amount")
	bankingPath, _ := cmd.Flags().GetString("banking-data")
	metricsPath, _ := cmd.Flags().GetString("channel-metrics")
	proposal, _ := cmd.Flags().GetString("proposal")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	env, err := initEnv(ctx, "evaluate")
	if err != nil {
		return err
	}
	defer env.Close()

	bd, err := env.Ledger.Load(ctx, bankingPath)
	if err != nil {
		return err
	}

	req := &model.LoanRequest{
		ChannelID:   channelID,
		LoanAmount:  amount,
		BankingData: bd,
		Proposal:    proposal,
	}
	if metricsPath != "" {
		in, err := readChannelMetrics(metricsPath)
		if err != nil {
			return err
		}
		req.ChannelMetrics = in
	}

	ev, evalErr := env.Evaluator.Evaluate(ctx, req)
	if ev != nil {
		w, closeFn, err := openOutput(outputPath)
		if err != nil {
			return err
		}
		if err := writeFormatted(w, format, ev); err != nil {
			_ = closeFn()
			return err
		}
		if err := closeFn(); err != nil {
			return eris.Wrap(err, "close output")
		}
	}
	return evalErr
}

func readChannelMetrics(path string) (*model.ChannelMetricsInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read channel metrics %s", path)
	}
	var in model.ChannelMetricsInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, &model.ValidationError{Field: "channel_metrics", Reason: err.Error()}
	}
	return &in, nil
}
