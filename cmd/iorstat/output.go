package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/atgtools/iorstat/pkg/fsutil"
	"github.com/spf13/cobra"
)

// outputOptions redirects a command's result from stdout to a file.
type outputOptions struct {
	path  string
	owner string
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.path, "output", "o", "",
		"Write output to this file instead of stdout")
	cmd.Flags().StringVar(&o.owner, "output-owner", "",
		"Ownership of the output file as UID[:GID]")
}

// write renders into the output file, or stdout when none was given.
func (o *outputOptions) write(cmd *cobra.Command, render func(io.Writer) error) error {
	if o.path == "" {
		return render(cmd.OutOrStdout())
	}

	owner, err := fsutil.ParseOwner(o.owner)
	if err != nil {
		return fmt.Errorf("parsing --output-owner: %w", err)
	}

	var buf bytes.Buffer

	if err := render(&buf); err != nil {
		return err
	}

	if err := fsutil.WriteFile(o.path, buf.Bytes(), 0o644, owner); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	log.WithField("output", o.path).Info("Output written")

	return nil
}
