package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/creator-credit/internal/collector"
	"github.com/sells-group/creator-credit/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Run a single scorer without the decision step",
	Long: `Runs one of the deterministic scorers on its own. Scores run from 0 (best)
to 10 (worst). Nothing is stored.

Examples:
  # Credit risk of a ledger
  score credit --banking-data ledger.json

  # Channel quality from explicit metrics
  score channel --subscribers 250000 --views-per-video 40000 --engagement-ratio 0.05

  # Channel quality from the live channel feed
  score channel --channel UCxyz`,
}

var scoreCreditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Score a banking ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("banking-data")
		format, _ := cmd.Flags().GetString("format")

		loader, gcs, err := initLedger(ctx)
		if err != nil {
			return err
		}
		if gcs != nil {
			defer gcs.Close() //nolint:errcheck
		}

		bd, err := loader.Load(ctx, path)
		if err != nil {
			return err
		}

		credit, _, err := initScorers()
		if err != nil {
			return err
		}
		res := credit.Evaluate(bd.ScoringAccount())
		return writeFormatted(cmd.OutOrStdout(), format, res)
	},
}

type channelScoreOutput struct {
	Score   float64              `json:"score"`
	Metrics model.ChannelMetrics `json:"metrics"`
}

var scoreChannelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Score channel quality",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		channelID, _ := cmd.Flags().GetString("channel")

		var m model.ChannelMetrics
		if channelID != "" {
			if cfg.YouTube.Key == "" {
				return eris.New("score channel: --channel needs CREDIT_YOUTUBE_KEY")
			}
			yt, err := initYouTube(ctx)
			if err != nil {
				return err
			}
			snap, err := collector.NewYouTubeSource(yt, cfg.YouTube.MaxVideos).Snapshot(ctx, channelID)
			if err != nil {
				return eris.Wrap(err, "score channel")
			}
			m = snap.Metrics()
		} else {
			in, err := channelMetricsFromFlags(cmd)
			if err != nil {
				return err
			}
			if m, err = in.Metrics(); err != nil {
				return err
			}
		}

		_, channel, err := initScorers()
		if err != nil {
			return err
		}
		score := channel.Evaluate(m)
		return writeFormatted(cmd.OutOrStdout(), format, channelScoreOutput{Score: score, Metrics: m})
	},
}

// channelMetricsFromFlags builds the metrics input from the explicitly set
// flags only, so unset flags stay absent rather than zero.
func channelMetricsFromFlags(cmd *cobra.Command) (model.ChannelMetricsInput, error) {
	f := cmd.Flags()
	var in model.ChannelMetricsInput

	if f.Changed("subscribers") {
		v, _ := f.GetInt64("subscribers")
		in.Subscribers = &v
	}
	if f.Changed("views-per-video") {
		v, _ := f.GetFloat64("views-per-video")
		in.ViewsPerVideo = &v
	}
	if f.Changed("total-views") {
		v, _ := f.GetFloat64("total-views")
		in.TotalViews = &v
	}
	if f.Changed("engagement-ratio") {
		v, _ := f.GetFloat64("engagement-ratio")
		in.EngagementRatio = &v
	}
	in.VideoCount, _ = f.GetInt("video-count")

	if in.Subscribers == nil && in.ViewsPerVideo == nil && in.TotalViews == nil && in.EngagementRatio == nil {
		return in, eris.New("score channel: pass --channel or the metric flags")
	}
	return in, nil
}

func init() {
	scoreCreditCmd.Flags().String("banking-data", "", "banking data JSON: local path or gs://bucket/object (required)")
	scoreCreditCmd.Flags().String("format", "json", "output format: json or yaml")
	_ = scoreCreditCmd.MarkFlagRequired("banking-data")

	f := scoreChannelCmd.Flags()
	f.String("channel", "", "fetch metrics for this channel ID from the channel feed")
	f.Int64("subscribers", 0, "subscriber count")
	f.Float64("views-per-video", 0, "average views per video")
	f.Float64("total-views", 0, "total views over the sampled uploads (alternative to --views-per-video)")
	f.Int("video-count", 0, "uploads --total-views is spread over (default 50)")
	f.Float64("engagement-ratio", 0, "(likes + comments) / views")
	f.String("format", "json", "output format: json or yaml")

	scoreCmd.AddCommand(scoreCreditCmd)
	scoreCmd.AddCommand(scoreChannelCmd)
	rootCmd.AddCommand(scoreCmd)
}
