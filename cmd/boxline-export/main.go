// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// boxline-export writes a Boxline store as a JSON-Lines batch that
// boxline-import can load, to stdout or a file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/annolab/boxline/lib/export"
	"github.com/annolab/boxline/lib/store"
	"github.com/annolab/boxline/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var dbPath string
	var formatFlag string
	var outPath string
	var gzipFlag bool

	flagSet := pflag.NewFlagSet("boxline-export", pflag.ContinueOnError)
	flagSet.StringVar(&dbPath, "db", "boxline.db", "path to the annotation store")
	flagSet.StringVar(&formatFlag, "format", string(export.FormatKeyframes),
		"sequence format: keyframes-only or full-sequence")
	flagSet.StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	flagSet.BoolVarP(&gzipFlag, "gzip", "z", false, "gzip the output")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("boxline-export")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	format := export.Format(formatFlag)
	if format != export.FormatKeyframes && format != export.FormatFull {
		return fmt.Errorf("unknown format %q", formatFlag)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	st, err := store.Open(store.Config{Path: dbPath, Logger: logger})
	if err != nil {
		return err
	}
	defer st.Close()

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return export.Write(context.Background(), st, out, export.Options{
		Format: format,
		Gzip:   gzipFlag,
		Logger: logger,
	})
}
