package main

import (
	"context"
	"fmt"
	"io"

	"github.com/atgtools/iorstat/pkg/aggregate"
	"github.com/atgtools/iorstat/pkg/config"
	"github.com/atgtools/iorstat/pkg/report"
	"github.com/atgtools/iorstat/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	aggThreads   int
	aggMetadata  bool
	aggJSON      bool
	aggReduceOn  string
	aggSummary   bool
	aggWeekStart string
	aggOutput    outputOptions
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <telemetry-dump>...",
	Short: "Reduce daily telemetry dumps and fold them into time buckets",
	Long: `Reduce each daily telemetry dump to a summary in parallel, then sum the
summaries by day, week, month or year. Unreadable dumps are logged and
skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().IntVar(&aggThreads, "threads", 0,
		"Extraction workers (default: one per logical CPU)")
	aggregateCmd.Flags().BoolVar(&aggMetadata, "metadata", false,
		"Report metadata operation counts instead of read/write volumes")
	aggregateCmd.Flags().BoolVar(&aggJSON, "json", false,
		"Print JSON instead of a table")
	aggregateCmd.Flags().StringVar(&aggReduceOn, "reduce-on", config.DefaultReduceOn,
		"Bucket granularity (day, week, month, year)")
	aggregateCmd.Flags().BoolVar(&aggSummary, "summary", false,
		"Append a totals row")
	aggregateCmd.Flags().StringVar(&aggWeekStart, "week-start", config.DefaultWeekStart,
		"First day of a week bucket")
	aggOutput.register(aggregateCmd)
}

// aggregateOptions resolves flags over config values.
func aggregateOptions(cmd *cobra.Command, ac config.AggregateConfig) config.AggregateConfig {
	flags := cmd.Flags()

	if flags.Changed("threads") {
		ac.Threads = aggThreads
	}

	if flags.Changed("metadata") {
		ac.Metadata = aggMetadata
	}

	if flags.Changed("reduce-on") {
		ac.ReduceOn = aggReduceOn
	}

	if flags.Changed("week-start") {
		ac.WeekStart = aggWeekStart
	}

	return ac
}

func runAggregate(cmd *cobra.Command, args []string) error {
	opts := aggregateOptions(cmd, cfg.Aggregate)

	result, err := aggregateFiles(cmd.Context(), log, opts, args)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		log.Warn(w)
	}

	return aggOutput.write(cmd, func(w io.Writer) error {
		return writeAggregate(w, result, aggJSON, aggSummary)
	})
}

func aggregateFiles(
	ctx context.Context,
	log logrus.FieldLogger,
	opts config.AggregateConfig,
	paths []string,
) (*aggregate.Result, error) {
	g, err := aggregate.ParseGranularity(opts.ReduceOn)
	if err != nil {
		return nil, err
	}

	weekStart, err := aggregate.ParseWeekday(opts.WeekStart)
	if err != nil {
		return nil, err
	}

	mode := telemetry.ModeReadWrite
	if opts.Metadata {
		mode = telemetry.ModeMetadata
	}

	if ctx == nil {
		ctx = context.Background()
	}

	summaries := telemetry.Collect(ctx, log, &telemetry.DumpExtractor{Mode: mode}, paths, opts.Threads)

	agg := aggregate.New(g, mode.Metrics())
	agg.WeekStart = weekStart

	if len(opts.NonAdditive) > 0 {
		agg.NonAdditive = make(map[string]struct{}, len(opts.NonAdditive))
		for _, m := range opts.NonAdditive {
			agg.NonAdditive[m] = struct{}{}
		}
	}

	return agg.Aggregate(summaries), nil
}

func writeAggregate(w io.Writer, result *aggregate.Result, asJSON, withSummary bool) error {
	if asJSON {
		return report.WriteJSON(w, result)
	}

	if err := report.WriteTable(w, result, telemetry.HeaderLabels, withSummary); err != nil {
		return fmt.Errorf("writing aggregate table: %w", err)
	}

	return nil
}
