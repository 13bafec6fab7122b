package main

import (
	"fmt"
	"io"

	"github.com/atgtools/iorstat/pkg/report"
	"github.com/spf13/cobra"
)

var (
	parseFormat string
	parseOutput outputOptions
)

var parseCmd = &cobra.Command{
	Use:   "parse <report>...",
	Short: "Parse IOR reports",
	Long: `Parse one or more IOR text reports, including files holding several
concatenated runs, and print the recovered records.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseFormat, "format", string(report.FormatJSON),
		"Output format (table, json, yaml, markdown)")
	parseOutput.register(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(parseFormat)
	if err != nil {
		return err
	}

	reports, failed := parseReports(log, args)

	if err := parseOutput.write(cmd, func(w io.Writer) error {
		return writeReports(w, format, reports)
	}); err != nil {
		return err
	}

	return failedErr(failed, len(args))
}

func writeReports(w io.Writer, format report.Format, reports []parsedReport) error {
	switch format {
	case report.FormatJSON:
		return report.WriteJSON(w, reports)
	case report.FormatYAML:
		return report.WriteYAML(w, reports)
	case report.FormatMarkdown:
		for _, r := range reports {
			if _, err := io.WriteString(w, report.RunsMarkdown(r.File, r.Runs)); err != nil {
				return fmt.Errorf("writing markdown: %w", err)
			}
		}

		return nil
	default:
		for i, r := range reports {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return fmt.Errorf("writing table: %w", err)
				}
			}

			if _, err := fmt.Fprintf(w, "%s\n", r.File); err != nil {
				return fmt.Errorf("writing table: %w", err)
			}

			if err := report.WriteRunsTable(w, r.Runs); err != nil {
				return err
			}
		}

		return nil
	}
}
