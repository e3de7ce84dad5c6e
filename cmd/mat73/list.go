package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scigolib/mat73"
)

// maxOpenFiles bounds how many files list opens at once.
const maxOpenFiles = 4

// listing is the variable table of one file.
type listing struct {
	File      string               `json:"file"`
	Variables []mat73.VariableInfo `json:"variables"`
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list FILE...",
		Short: "List the variables of MAT-files",
		Long: `List prints a table of every variable: name, class, MATLAB size,
stored size and a short summary. Files are read concurrently and printed in
argument order.

Example:
  mat73 list run.mat
  mat73 list --json run1.mat run2.mat`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listings, err := a.list(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(listings)
			}
			for i, l := range listings {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := printListing(out, l, len(listings) > 1); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// list reads the variable tables of paths concurrently.
func (a *app) list(paths []string) ([]listing, error) {
	listings := make([]listing, len(paths))
	var g errgroup.Group
	g.SetLimit(maxOpenFiles)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			f, err := a.open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			infos, err := f.ListVariables()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for _, d := range f.Diagnostics() {
				a.log.Warn("degraded metadata", "file", path, "error", d)
			}
			listings[i] = listing{File: path, Variables: infos}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

func printListing(w io.Writer, l listing, header bool) error {
	if header {
		fmt.Fprintf(w, "%s:\n", l.File)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCLASS\tSIZE\tBYTES\tSUMMARY")
	for _, v := range l.Variables {
		bytes := "-"
		if v.Bytes > 0 {
			//nolint:gosec // G115: sizes are non-negative
			bytes = humanize.Bytes(uint64(v.Bytes))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Name, v.Class, mat73.FormatShape(v.Dims), bytes, v.Summary)
	}
	return tw.Flush()
}
