package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/agext/levenshtein"
	"github.com/spf13/cobra"

	"github.com/scigolib/mat73"
)

// defaultRows limits printed rows of arrays and timeseries.
const defaultRows = 100

func newShowCmd(a *app) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "show FILE VARIABLE",
		Short: "Print one variable",
		Long: `Show reads one variable and prints a summary: class and size,
min/max/mean of numeric arrays and their first rows, the sample count and
first samples of timeseries, and the fields of structs and elements of cells.

Example:
  mat73 show run.mat speed
  mat73 show run.mat speed --rows 10
  mat73 show run.mat params --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			v, err := f.Read(args[1])
			if err != nil {
				var nf *mat73.NotFoundError
				if errors.As(err, &nf) {
					if guess, ok := closest(nf.Name, nf.Available); ok {
						return fmt.Errorf("%w (did you mean %q?)", err, guess)
					}
				}
				return err
			}
			for _, d := range f.Diagnostics() {
				a.log.Warn("degraded metadata", "file", args[0], "error", d)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			return printValue(out, args[1], v, rows)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", defaultRows, "maximum rows to print")
	return cmd
}

// maxTypoDistance is the largest edit distance suggested as a typo.
const maxTypoDistance = 2

// closest returns the name in names nearest to name, if it is a likely typo.
func closest(name string, names []string) (string, bool) {
	best, bestDist := "", maxTypoDistance+1
	for _, n := range names {
		if d := levenshtein.Distance(name, n, nil); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, best != ""
}

func printValue(w io.Writer, name string, v mat73.Value, rows int) error {
	fmt.Fprintf(w, "%s: %s\n", name, mat73.Summarize(v))
	switch v := v.(type) {
	case mat73.Text:
		fmt.Fprintln(w, string(v))
	case *mat73.Array:
		printStats(w, "", v)
		printArray(w, v, rows)
	case *mat73.Timeseries:
		printTimeseries(w, v, rows)
	case *mat73.Record:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, k := range v.Keys() {
			field, _ := v.Get(k)
			fmt.Fprintf(tw, "  %s\t%s\n", k, mat73.Summarize(field))
		}
		return tw.Flush()
	case *mat73.Sequence:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for i, e := range v.Elems {
			fmt.Fprintf(tw, "  {%d}\t%s\n", i+1, mat73.Summarize(e))
		}
		return tw.Flush()
	}
	return nil
}

func printStats(w io.Writer, label string, a *mat73.Array) {
	s, ok := a.Describe()
	if !ok {
		return
	}
	fmt.Fprintf(w, "%smin: %s  max: %s  mean: %s\n", label, num(s.Min), num(s.Max), num(s.Mean))
}

// printArray prints up to rows rows. Arrays of more than two dimensions
// print their first elements in storage order.
func printArray(w io.Writer, a *mat73.Array, rows int) {
	vals := a.Float64s()
	nrows, ncols := len(vals), 1
	if len(a.Shape) == 2 {
		nrows, ncols = a.Shape[0], a.Shape[1]
	}
	shown := min(nrows, rows)
	for i := 0; i < shown; i++ {
		cols := make([]string, ncols)
		for j := range cols {
			cols[j] = num(vals[i+j*nrows])
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if nrows > shown {
		fmt.Fprintf(w, "... %d more rows\n", nrows-shown)
	}
}

func printTimeseries(w io.Writer, ts *mat73.Timeseries, rows int) {
	n := ts.Samples()
	if n == 0 {
		return
	}
	times := ts.Time.Float64s()
	fmt.Fprintf(w, "time: %s .. %s\n", num(times[0]), num(times[n-1]))
	printStats(w, "data ", ts.Data)

	data := ts.Data.Float64s()
	width := 1
	if len(data) >= n {
		width = len(data) / n
	}
	shown := min(n, rows)
	for i := 0; i < shown; i++ {
		cols := []string{num(times[i])}
		for j := 0; j < width && i+j*n < len(data); j++ {
			cols = append(cols, num(data[i+j*n]))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if n > shown {
		fmt.Fprintf(w, "... %d more samples\n", n-shown)
	}
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
