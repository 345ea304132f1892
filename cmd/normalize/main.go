// Command normalize lower-cases, tokenizes, drops English stopwords from and
// lemmatizes the cleaned Context and Response columns.
package main

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/dataset"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/textnorm"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(os.Args[1:], os.Stderr, logger); err != nil {
		logger.Error("normalize failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", dataset.DefaultCleanOutput, "cleaned pipe-delimited file")
	out := fs.String("out", textnorm.DefaultOutput, "normalized output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := textnorm.New().File(*in, *out, logger)
	if err != nil {
		return err
	}
	logger.Info("data normalized", "input", st.Input, "output", st.Output, "rows", st.Rows)
	return nil
}
