package main

import (
	"fmt"

	"github.com/atgtools/iorstat/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	uploadResultDir  string
	uploadResultFile string
	uploadPreflight  bool
)

var uploadResultsCmd = &cobra.Command{
	Use:   "upload-results",
	Short: "Upload generated reports to remote storage",
	Long:  `Upload a local results directory or a single report to S3-compatible storage using the config file settings.`,
	RunE:  runUploadResults,
}

func init() {
	rootCmd.AddCommand(uploadResultsCmd)
	uploadResultsCmd.Flags().StringVar(&uploadResultDir, "result-dir", "",
		"Path to the result directory to upload")
	uploadResultsCmd.Flags().StringVar(&uploadResultFile, "file", "",
		"Path to a single report to upload")
	uploadResultsCmd.Flags().BoolVar(&uploadPreflight, "preflight", true,
		"Write a test object before uploading")

	uploadResultsCmd.MarkFlagsOneRequired("result-dir", "file")
	uploadResultsCmd.MarkFlagsMutuallyExclusive("result-dir", "file")
}

func runUploadResults(cmd *cobra.Command, args []string) error {
	if !cfg.Upload.S3.Enabled {
		return fmt.Errorf("S3 upload is not configured or not enabled in config")
	}

	uploader, err := upload.NewS3Uploader(log, &cfg.Upload.S3)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	if uploadPreflight {
		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("preflight: %w", err)
		}
	}

	if uploadResultFile != "" {
		if _, err := uploader.UploadFile(ctx, uploadResultFile); err != nil {
			return fmt.Errorf("uploading report: %w", err)
		}

		return nil
	}

	log.WithField("dir", uploadResultDir).Info("Uploading results")

	if _, err := uploader.Upload(ctx, uploadResultDir); err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}

	log.Info("Upload completed successfully")

	return nil
}
