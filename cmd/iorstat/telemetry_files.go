package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	telemetryFilesTemplate string
	telemetryFilesExisting bool
)

var telemetryFilesCmd = &cobra.Command{
	Use:   "telemetry-files <report>...",
	Short: "List the daily telemetry files covering each run",
	Long: `List the daily telemetry files covering the time span of every run in
the given reports. Each file is printed once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTelemetryFiles,
}

func init() {
	rootCmd.AddCommand(telemetryFilesCmd)
	telemetryFilesCmd.Flags().StringVar(&telemetryFilesTemplate, "template", "",
		"Path template with {date} and {fs} placeholders (default from config)")
	telemetryFilesCmd.Flags().BoolVar(&telemetryFilesExisting, "existing", false,
		"Only list files that exist on disk")
}

func runTelemetryFiles(cmd *cobra.Command, args []string) error {
	template := cfg.IOR.TelemetryPathTemplate
	if telemetryFilesTemplate != "" {
		template = telemetryFilesTemplate
	}

	reports, failed := parseReports(log, args)

	files, err := telemetryFiles(log, reports, template, cfg.IOR.FSMap, telemetryFilesExisting)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	for _, f := range files {
		if _, err := fmt.Fprintln(out, f); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}

	return failedErr(failed, len(args))
}

// telemetryFiles lists the distinct telemetry files covering every run,
// in report order. Runs without a time span are skipped with a warning.
func telemetryFiles(
	log logrus.FieldLogger,
	reports []parsedReport,
	template string,
	fsMap map[string]string,
	existingOnly bool,
) ([]string, error) {
	var (
		files []string
		seen  = make(map[string]struct{}, 16)
	)

	for _, r := range reports {
		for i, rec := range r.Runs {
			paths, err := ior.TelemetryFiles(rec, template, fsMap)
			if err != nil {
				if errors.Is(err, ior.ErrIncompleteRun) {
					log.WithError(err).
						WithField("file", r.File).
						WithField("run", i+1).
						Warn("Skipping run without a time span")

					continue
				}

				return nil, fmt.Errorf("%s run %d: %w", r.File, i+1, err)
			}

			for _, p := range paths {
				if _, ok := seen[p]; ok {
					continue
				}

				if existingOnly {
					if info, err := os.Stat(p); err != nil || info.IsDir() {
						log.WithField("path", p).Debug("Telemetry file not found")

						continue
					}
				}

				seen[p] = struct{}{}
				files = append(files, p)
			}
		}
	}

	return files, nil
}
