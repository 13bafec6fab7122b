package main

import (
	"io"

	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/atgtools/iorstat/pkg/report"
	"github.com/spf13/cobra"
)

var summarizeOutput outputOptions

var summarizeIORCmd = &cobra.Command{
	Use:   "summarize-ior <report>...",
	Short: "Print mean throughput per job geometry",
	Long: `Parse IOR reports and print a JSON table keyed by "<nodes>-<ppn>" holding
the mean read and write throughput in MiB/s. Later runs with the same
geometry replace earlier ones.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarizeIOR,
}

func init() {
	rootCmd.AddCommand(summarizeIORCmd)
	summarizeOutput.register(summarizeIORCmd)
}

func runSummarizeIOR(cmd *cobra.Command, args []string) error {
	reports, failed := parseReports(log, args)

	jobs := ior.JobsTable(allRuns(reports))

	if err := summarizeOutput.write(cmd, func(w io.Writer) error {
		return report.WriteJSON(w, jobs)
	}); err != nil {
		return err
	}

	return failedErr(failed, len(args))
}
