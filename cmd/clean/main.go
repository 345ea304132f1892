// Command clean strips everything but letters, digits and whitespace from
// the Context and Response columns of a CSV or XLSX file and writes the
// result as a pipe-delimited file.
package main

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/dataset"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(os.Args[1:], os.Stderr, logger); err != nil {
		logger.Error("clean failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "data_mental_health.csv", "source .csv or .xlsx file")
	out := fs.String("out", dataset.DefaultCleanOutput, "pipe-delimited output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}

	st, err := dataset.Clean(*in, *out, logger)
	if err != nil {
		return err
	}
	logger.Info("data cleaned", "input", st.Input, "output", st.Output, "rows", st.Rows)
	return nil
}
